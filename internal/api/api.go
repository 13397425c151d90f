// Package api implements the REST and websocket surface of the registry.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chaintrace/registry/internal/errors"
	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/ledger"
	"github.com/chaintrace/registry/internal/lookup"
	"github.com/chaintrace/registry/internal/metrics"
	"github.com/chaintrace/registry/pkg/logger"
)

// Handler serves the registry API.
type Handler struct {
	ledger  *ledger.Client
	lookup  *lookup.Lookup
	hub     *events.Hub
	metrics *metrics.Metrics
	log     *logger.Logger

	// health probes; nil checks are skipped
	checks map[string]func() error
}

// NewHandler creates the API handler.
func NewHandler(lc *ledger.Client, lk *lookup.Lookup, hub *events.Hub, m *metrics.Metrics, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("api")
	}
	return &Handler{
		ledger:  lc,
		lookup:  lk,
		hub:     hub,
		metrics: m,
		log:     log,
		checks:  make(map[string]func() error),
	}
}

// WithCheck registers a named dependency probe for the health endpoint.
func (h *Handler) WithCheck(name string, check func() error) *Handler {
	h.checks[name] = check
	return h
}

// RegisterRoutes registers API routes on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/products", h.handleCreateProduct).Methods(http.MethodPost)
	v1.HandleFunc("/products", h.handleListProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", h.handleGetProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}/verify", h.handleVerifyProduct).Methods(http.MethodPost)
	v1.HandleFunc("/products/{id}/finalize", h.handleFinalizeProduct).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/{id}", h.handleGetSubmission).Methods(http.MethodGet)
	v1.HandleFunc("/events", h.handleEvents).Methods(http.MethodGet)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
}

// Response is a JSend-compatible response.
type Response struct {
	Status  string      `json:"status"` // "success", "fail", "error"
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    errors.Code `json:"code,omitempty"`
}

func successResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Status: "success",
		Data:   data,
	})
}

func errorResponse(w http.ResponseWriter, err error) {
	se := errors.AsServiceError(err)
	if se == nil {
		se = errors.Internal("request failed", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	json.NewEncoder(w).Encode(Response{
		Status:  "error",
		Message: se.Message,
		Code:    se.Code,
	})
}

// pathID parses the {id} route variable as a positive product id.
func pathID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Validation("product id must be a positive integer")
	}
	return id, nil
}
