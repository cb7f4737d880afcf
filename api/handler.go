// Package api implements the service's JSON endpoints: quota status
// introspection and health.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/yourusername/quotagate/middleware"
	"github.com/yourusername/quotagate/quota"
)

// Pinger reports bucket store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the status and health endpoints.
type Handler struct {
	eval  *quota.Evaluator
	quota *middleware.Quota
	store Pinger
}

// NewHandler creates an API handler.
func NewHandler(eval *quota.Evaluator, q *middleware.Quota, store Pinger) *Handler {
	return &Handler{
		eval:  eval,
		quota: q,
		store: store,
	}
}

// StatusResponse describes the caller's quota standing.
type StatusResponse struct {
	Tier      string `json:"tier"`
	Limit     int64  `json:"limit"`
	WindowMs  int64  `json:"window_ms"`
	Burst     int64  `json:"burst"`
	Remaining int64  `json:"remaining"`
	ResetMs   int64  `json:"reset_ms"`
}

// Status handles GET /v1/quota/status. It reads the caller's bucket with a
// zero-cost evaluation: the bucket is refilled and re-expired but no tokens
// are spent, so polling status never eats into the budget.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	tierName, p, _ := h.quota.Resolve(r)
	key := h.quota.TrackerKey(r)

	res := h.eval.Check(r.Context(), key, p, 0)

	writeJSON(w, http.StatusOK, StatusResponse{
		Tier:      tierName,
		Limit:     p.Limit,
		WindowMs:  p.Window.Milliseconds(),
		Burst:     p.Burst,
		Remaining: res.Remaining,
		ResetMs:   res.Reset.Milliseconds(),
	})
}

// Health handles GET /health. The store being down degrades the report but
// keeps the endpoint at 200: with fail-open enforcement the service still
// serves traffic without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			storeStatus = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"store":  storeStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
