package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        *ServiceError
		code       Code
		httpStatus int
	}{
		{"unauthorized", Unauthorized("caller is not a distributor"), CodeUnauthorized, http.StatusForbidden},
		{"not found", NotFound("product 999 does not exist"), CodeNotFound, http.StatusNotFound},
		{"invalid transition", InvalidTransition("product already verified"), CodeInvalidTransition, http.StatusConflict},
		{"connection", Connection("ledger unreachable", stderrors.New("dial tcp")), CodeConnection, http.StatusBadGateway},
		{"validation", Validation("batch id required"), CodeValidation, http.StatusBadRequest},
		{"invalid token", InvalidToken(nil), CodeInvalidToken, http.StatusUnauthorized},
		{"internal", Internal("unexpected", nil), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.httpStatus, tc.err.HTTPStatus)
			assert.True(t, HasCode(tc.err, tc.code))
		})
	}
}

func TestWrappedExtraction(t *testing.T) {
	inner := NotFound("product 7 does not exist")
	wrapped := fmt.Errorf("lookup: %w", inner)

	se := AsServiceError(wrapped)
	require.NotNil(t, se, "service error should be found in the chain")
	assert.Equal(t, CodeNotFound, se.Code)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsUnauthorized(wrapped))
}

func TestConnectionUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Connection("ledger unreachable", cause)

	assert.True(t, stderrors.Is(err, cause), "cause should be reachable via errors.Is")
}

func TestWithDetails(t *testing.T) {
	err := Validation("id must be positive").WithDetails("id", -3)
	assert.Equal(t, -3, err.Details["id"])

	limited := RateLimited(10, "1s")
	assert.Equal(t, 10, limited.Details["limit"])
	assert.Equal(t, "1s", limited.Details["window"])
}

func TestAsServiceErrorNil(t *testing.T) {
	assert.Nil(t, AsServiceError(stderrors.New("plain")))
	assert.Nil(t, AsServiceError(nil))
}
