package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/internal/services"
	"github.com/icusim/icu-sim/internal/storage"
	"github.com/icusim/icu-sim/pkg/handoff"
	"github.com/icusim/icu-sim/pkg/prompts"
)

// HandoffHandler grades the learner's handoff report. Grading never
// blocks the session: any failure along the way degrades to fallback
// feedback with status 200, so the player can always reach the
// debrief.
type HandoffHandler struct {
	storage storage.Storage
	nlg     services.NLGService
	logger  *slog.Logger
}

func NewHandoffHandler(storage storage.Storage, nlg services.NLGService, logger *slog.Logger) *HandoffHandler {
	return &HandoffHandler{
		storage: storage,
		nlg:     nlg,
		logger:  logger,
	}
}

type HandoffRequest struct {
	SessionID uuid.UUID      `json:"session_id"`
	Report    handoff.Report `json:"report"`
}

// ServeHTTP handles POST /v1/handoff.
func (h *HandoffHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req HandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid handoff request body", "error", err)
		writeJSON(w, h.logger, http.StatusOK, handoff.FallbackFeedback())
		return
	}
	if req.SessionID == uuid.Nil || req.Report.Validate() != nil {
		h.logger.Warn("Incomplete handoff request", "session_id", req.SessionID)
		writeJSON(w, h.logger, http.StatusOK, handoff.FallbackFeedback())
		return
	}

	s, err := h.storage.LoadSession(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Warn("Failed to load session for handoff", "session_id", req.SessionID, "error", err)
		writeJSON(w, h.logger, http.StatusOK, handoff.FallbackFeedback())
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for handoff", "scenario_id", s.ScenarioID, "error", err)
		writeJSON(w, h.logger, http.StatusOK, handoff.FallbackFeedback())
		return
	}

	if err := s.SubmitHandoff(req.Report); err != nil {
		h.logger.Warn("Handoff not recorded", "session_id", s.ID, "error", err)
	} else if err := h.storage.SaveSession(r.Context(), s); err != nil {
		h.logger.Error("Failed to save handoff report", "session_id", s.ID, "error", err)
	}

	prompt := prompts.BuildGradingPrompt(sc, prompts.SummarizeActions(s), req.Report.Text())

	feedback, err := h.nlg.EvaluateHandoff(r.Context(), prompt)
	if err != nil {
		h.logger.Warn("Handoff grading failed, using fallback",
			"session_id", s.ID, "error", err)
		feedback = handoff.FallbackFeedback()
	}

	// The session may have moved on while grading was in flight
	// (diagnosis submitted, reset). Attach the verdict to the current
	// state, never the pre-grading snapshot.
	fresh, err := h.storage.LoadSession(r.Context(), s.ID)
	if err != nil {
		h.logger.Warn("Session gone after grading, feedback not recorded",
			"session_id", s.ID, "error", err)
		writeJSON(w, h.logger, http.StatusOK, feedback)
		return
	}
	if err := fresh.SetHandoffFeedback(feedback); err != nil {
		h.logger.Warn("Handoff feedback dropped", "session_id", fresh.ID, "error", err)
		writeJSON(w, h.logger, http.StatusOK, feedback)
		return
	}
	if err := h.storage.SaveSession(r.Context(), fresh); err != nil {
		h.logger.Error("Failed to save session after handoff", "session_id", fresh.ID, "error", err)
	}

	h.logger.Info("Handoff graded",
		"session_id", s.ID,
		"overall", feedback.Overall,
		"score", feedback.Score)

	writeJSON(w, h.logger, http.StatusOK, feedback)
}
