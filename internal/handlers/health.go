package handlers

import (
	"log/slog"
	"net/http"

	"github.com/icusim/icu-sim/internal/storage"
)

// HealthHandler reports service and storage health.
type HealthHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewHealthHandler(storage storage.Storage, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, logger: logger}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.Error("Storage health check failed", "error", err)
		writeJSON(w, h.logger, http.StatusServiceUnavailable, healthResponse{
			Status:  "degraded",
			Storage: "unavailable",
		})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, healthResponse{
		Status:  "ok",
		Storage: "ok",
	})
}
