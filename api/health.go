package api

import (
	"context"
	"net/http"

	"github.com/taurimind/server/internal/log"
)

// ReadyChecker reports whether the server's dependencies are ready.
// *pgxpool.Pool satisfies it. A nil checker means there is nothing to
// probe (in-memory mode) and readiness always succeeds.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready  ReadyChecker
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadyChecker, logger log.Logger) *HealthHandler {
	return &HealthHandler{ready: ready, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Returns 200 OK if all dependencies are ready.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			http.Error(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
