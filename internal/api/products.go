package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/ledger"
	"github.com/chaintrace/registry/internal/middleware"
	"github.com/chaintrace/registry/internal/registry"
)

// productView is the caller-facing product shape.
type productView struct {
	registry.Product
	URI string `json:"uri"`
}

func viewOf(p registry.Product) productView {
	return productView{Product: p, URI: p.URI()}
}

// submissionView reports the state of a tracked submission.
type submissionView struct {
	SubmissionID string         `json:"submission_id"`
	Operation    string         `json:"operation"`
	State        string         `json:"state"` // "pending", "confirmed", "failed"
	SubmittedAt  string         `json:"submitted_at"`
	Result       *ledger.Result `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Code         errors.Code    `json:"code,omitempty"`
}

func submissionViewOf(p *ledger.Pending) submissionView {
	view := submissionView{
		SubmissionID: p.ID(),
		Operation:    p.Operation(),
		State:        "pending",
		SubmittedAt:  p.SubmittedAt().Format(time.RFC3339),
	}

	result, err, ok := p.Outcome()
	if !ok {
		return view
	}
	if err != nil {
		view.State = "failed"
		if se := errors.AsServiceError(err); se != nil {
			view.Error = se.Message
			view.Code = se.Code
		} else {
			view.Error = err.Error()
		}
		return view
	}
	view.State = "confirmed"
	view.Result = &result
	return view
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in registry.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorResponse(w, errors.Validation("invalid request body"))
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	pending, err := h.ledger.SubmitCreate(r.Context(), caller, in)
	if err != nil {
		errorResponse(w, err)
		return
	}

	successResponse(w, http.StatusAccepted, submissionViewOf(pending))
}

func (h *Handler) handleVerifyProduct(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.ledger.SubmitVerify)
}

func (h *Handler) handleFinalizeProduct(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.ledger.SubmitFinalize)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, submit func(ctx context.Context, caller registry.Caller, id uint64) (*ledger.Pending, error)) {
	id, err := pathID(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	pending, err := submit(r.Context(), caller, id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	successResponse(w, http.StatusAccepted, submissionViewOf(pending))
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pending, ok := h.ledger.Submission(id)
	if !ok {
		errorResponse(w, errors.NotFound("submission "+id+" does not exist"))
		return
	}

	successResponse(w, http.StatusOK, submissionViewOf(pending))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	p, err := h.lookup.Get(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	successResponse(w, http.StatusOK, viewOf(p))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		errorResponse(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		errorResponse(w, err)
		return
	}

	page, err := h.lookup.List(r.Context(), offset, limit)
	if err != nil {
		errorResponse(w, err)
		return
	}

	views := make([]productView, len(page.Products))
	for i, p := range page.Products {
		views[i] = viewOf(p)
	}

	successResponse(w, http.StatusOK, map[string]interface{}{
		"products": views,
		"total":    page.Total,
		"offset":   page.Offset,
		"limit":    page.Limit,
	})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation(name + " must be an integer")
	}
	return v, nil
}
