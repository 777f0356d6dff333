package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payguard/internal/audit"
)

// AuditService exposes the append-only trail for reviewers.
type AuditService interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
}

type auditHandler struct {
	trail AuditService
}

type auditEventResponse struct {
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor,omitempty"`
	Subject   string            `json:"subject"`
	Action    string            `json:"action"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (h *auditHandler) register(r chi.Router) {
	r.Get("/v1/audit/{subject}", h.handleList)
}

func (h *auditHandler) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.trail.List(r.Context(), chi.URLParam(r, "subject"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]auditEventResponse, len(events))
	for i, e := range events {
		out[i] = auditEventResponse{
			Timestamp: e.Timestamp,
			Actor:     e.Actor,
			Subject:   e.Subject,
			Action:    e.Action,
			Reason:    e.Reason,
			Metadata:  e.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
