package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icusim/icu-sim/internal/storage"
)

// ScenarioHandler serves the static case library.
type ScenarioHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewScenarioHandler(storage storage.Storage, logger *slog.Logger) *ScenarioHandler {
	return &ScenarioHandler{storage: storage, logger: logger}
}

// List handles GET /v1/scenarios.
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.storage.ListScenarios(r.Context())
	if err != nil {
		h.logger.Error("Failed to list scenarios", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list scenarios")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summaries)
}

// Get handles GET /v1/scenarios/{id}.
func (h *ScenarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sc, err := h.storage.GetScenario(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrScenarioNotFound):
			writeError(w, h.logger, http.StatusNotFound, "Scenario not found")
		case errors.Is(err, storage.ErrScenarioFormat):
			h.logger.Error("Scenario failed validation", "id", id, "error", err)
			writeError(w, h.logger, http.StatusUnprocessableEntity, "Scenario file is invalid")
		default:
			h.logger.Error("Failed to load scenario", "id", id, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, sc)
}
