package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the public API. The transport layer stays thin: handlers
// decode, delegate, and encode; all business rules live behind the service
// interfaces.
func NewRouter(staff StaffService, batches BatchService, trail AuditService, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	(&staffHandler{staff: staff, log: log}).register(r)
	(&batchHandler{batches: batches, log: log}).register(r)
	if trail != nil {
		(&auditHandler{trail: trail}).register(r)
	}
	return r
}
