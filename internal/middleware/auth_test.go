package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

var testSecret = []byte("test-signing-secret")

func signedToken(t *testing.T, subject, role string, expired bool) string {
	t.Helper()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if expired {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tokenString
}

func authHarness(t *testing.T) (*AuthMiddleware, http.Handler, *registry.Caller) {
	t.Helper()
	m := NewAuthMiddleware(testSecret, logger.NewDefault("test"), []string{"/health"})

	var seen registry.Caller
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return m, next, &seen
}

func TestAuthValidToken(t *testing.T) {
	m, next, seen := authHarness(t)

	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "mfg-1", "manufacturer", false))
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen.ID != "mfg-1" {
		t.Errorf("caller id = %q, want mfg-1", seen.ID)
	}
	if seen.Role != registry.RoleManufacturer {
		t.Errorf("role = %q, want manufacturer", seen.Role)
	}
}

func TestAuthMissingHeader(t *testing.T) {
	m, next, _ := authHarness(t)

	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthExpiredToken(t *testing.T) {
	m, next, _ := authHarness(t)

	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "mfg-1", "manufacturer", true))
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthWrongSigningMethodRejected(t *testing.T) {
	m, next, _ := authHarness(t)

	// alg=none style tokens must not pass.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "mfg-1"},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthSkipPaths(t *testing.T) {
	m, next, _ := authHarness(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	m.Handler(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimiterBlocksExcess(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDefault("test"))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Handler(next)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("GET", "/api/v1/products/1", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", statuses)
	}
	if statuses[3] != http.StatusTooManyRequests {
		t.Fatalf("excess request not limited: %v", statuses)
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.NewDefault("test"))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rl.Handler(next)

	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		req := httptest.NewRequest("GET", "/api/v1/products/1", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d from %s limited, want allowed", i, addr)
		}
	}
}
