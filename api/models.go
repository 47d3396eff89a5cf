package api

import (
	"net/http"

	"github.com/taurimind/server/internal/model"
)

// ModelHandler serves the model catalog.
type ModelHandler struct {
	models *model.Registry
}

// NewModelHandler creates a new model handler.
func NewModelHandler(models *model.Registry) *ModelHandler {
	return &ModelHandler{models: models}
}

// RegisterRoutes registers model routes on the given mux.
func (h *ModelHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.list)
}

// list returns the supported models. Credentials and endpoints stay
// server-side; only the public refs are exposed.
func (h *ModelHandler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.models.List()})
}
