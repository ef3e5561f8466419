package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/icusim/icu-sim/internal/scheduler"
	"github.com/icusim/icu-sim/internal/storage"
	"github.com/icusim/icu-sim/pkg/debrief"
	"github.com/icusim/icu-sim/pkg/meds"
	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

// SessionHandler owns the session lifecycle: creation, play commands,
// and the end-of-case debrief. Investigation result timers are keyed
// by session id so a reset cancels them cleanly.
type SessionHandler struct {
	storage   storage.Storage
	scheduler *scheduler.Scheduler
	delays    scheduler.Delays
	logger    *slog.Logger
}

func NewSessionHandler(storage storage.Storage, sched *scheduler.Scheduler, delays scheduler.Delays, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		storage:   storage,
		scheduler: sched,
		delays:    delays,
		logger:    logger,
	}
}

func (h *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return nil, false
	}

	s, err := h.storage.LoadSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Session not found")
		} else {
			h.logger.Error("Failed to load session", "session_id", id, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		}
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) save(w http.ResponseWriter, r *http.Request, s *session.Session) bool {
	if err := h.storage.SaveSession(r.Context(), s); err != nil {
		h.logger.Error("Failed to save session", "session_id", s.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return false
	}
	return true
}

// writeCommandError maps session command failures to HTTP statuses.
func (h *SessionHandler) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case session.IsWrongPhase(err):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	case session.IsDuplicateOrder(err):
		writeError(w, h.logger, http.StatusConflict, err.Error())
	default:
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	}
}

type CreateSessionRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// Create handles POST /v1/sessions. The session is seeded from the
// scenario and returned in ready phase.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'scenario_id' field.")
		return
	}
	if req.ScenarioID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "scenario_id is required")
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), req.ScenarioID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrScenarioNotFound):
			writeError(w, h.logger, http.StatusNotFound, "Scenario not found")
		case errors.Is(err, storage.ErrScenarioFormat):
			writeError(w, h.logger, http.StatusUnprocessableEntity, "Scenario file is invalid")
		default:
			h.logger.Error("Failed to load scenario", "scenario_id", req.ScenarioID, "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		}
		return
	}

	s := session.New(sc.ID)
	if err := s.Seed(sc); err != nil {
		h.logger.Error("Failed to seed session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if !h.save(w, r, s) {
		return
	}

	h.logger.Info("Session created", "session_id", s.ID, "scenario_id", sc.ID)
	writeJSON(w, h.logger, http.StatusCreated, s)
}

// Get handles GET /v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s)
}

// Delete handles DELETE /v1/sessions/{id}. Pending result timers are
// cancelled so a subsequent session never sees stale results.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	h.scheduler.Cancel(id)
	if err := h.storage.DeleteSession(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	h.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /v1/sessions/{id}/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for start", "scenario_id", s.ScenarioID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		return
	}

	if err := s.Start(sc); err != nil {
		h.writeCommandError(w, err)
		return
	}
	if !h.save(w, r, s) {
		return
	}

	h.logger.Info("Session started", "session_id", s.ID, "scenario_id", sc.ID)
	writeJSON(w, h.logger, http.StatusOK, s)
}

type OrderInvestigationsRequest struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

type OrderInvestigationsResponse struct {
	Order   *session.InvestigationOrder `json:"order"`
	ReadyIn string                      `json:"ready_in"`
}

// OrderInvestigations handles POST /v1/sessions/{id}/investigations.
// Results become available after a per-item delay; cultures take the
// longest and a mixed bundle waits for its slowest item.
func (h *SessionHandler) OrderInvestigations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req OrderInvestigationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'category' and 'items' fields.")
		return
	}
	if req.Category == "" || len(req.Items) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "category and items are required")
		return
	}

	order, err := s.OrderInvestigations(req.Category, req.Items)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	if err := s.AppendSystemMessage(fmt.Sprintf("Ordered %s: %s. Results pending.",
		req.Category, strings.Join(req.Items, ", "))); err != nil {
		h.logger.Warn("Failed to append order confirmation", "error", err)
	}

	if !h.save(w, r, s) {
		return
	}

	delay := h.delays.ForItems(order.Items)
	h.scheduleResults(s.ID, order.Label, delay)

	h.logger.Info("Investigations ordered",
		"session_id", s.ID,
		"label", order.Label,
		"items", len(order.Items),
		"delay", delay)

	writeJSON(w, h.logger, http.StatusCreated, OrderInvestigationsResponse{
		Order:   order,
		ReadyIn: delay.String(),
	})
}

// scheduleResults arms the availability timer for one order. The
// callback reloads the session: a reset in the meantime produces a
// different session id (or none), and stale results are dropped.
func (h *SessionHandler) scheduleResults(sessionID uuid.UUID, label string, delay time.Duration) {
	h.scheduler.Schedule(sessionID, label, delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := h.storage.LoadSession(ctx, sessionID)
		if err != nil {
			h.logger.Debug("Dropping results for missing session",
				"session_id", sessionID, "label", label)
			return
		}
		if s.Phase != session.PhaseRunning {
			h.logger.Debug("Dropping results for inactive session",
				"session_id", sessionID, "phase", s.Phase)
			return
		}

		s.MarkResultsAvailable(label)
		if err := s.AppendSystemMessage(fmt.Sprintf("Results available: %s", label)); err != nil {
			h.logger.Warn("Failed to append results notice", "error", err)
		}
		if err := h.storage.SaveSession(ctx, s); err != nil {
			h.logger.Error("Failed to save session after results",
				"session_id", sessionID, "label", label, "error", err)
			return
		}
		h.logger.Info("Investigation results available",
			"session_id", sessionID, "label", label)
	})
}

type InvestigationResults struct {
	Label    string            `json:"label"`
	Category string            `json:"category"`
	Pending  bool              `json:"pending"`
	Results  []scenario.Result `json:"results,omitempty"`
}

type ResultsResponse struct {
	Investigations []InvestigationResults `json:"investigations"`
}

// Results handles GET /v1/sessions/{id}/results. Every order in the
// ledger is listed; values are resolved from the case file only once
// the order's availability timer has fired.
func (h *SessionHandler) Results(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for results", "scenario_id", s.ScenarioID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		return
	}

	groups := make([]InvestigationResults, 0, len(s.Investigations))
	for _, order := range s.Investigations {
		g := InvestigationResults{
			Label:    order.Label,
			Category: order.Category,
			Pending:  !order.ResultsAvailable,
		}
		if order.ResultsAvailable {
			g.Results = sc.LabPanel.Results(order.Category, order.Items)
		}
		groups = append(groups, g)
	}

	writeJSON(w, h.logger, http.StatusOK, ResultsResponse{Investigations: groups})
}

type ExamRequest struct {
	Kind     string `json:"kind"` // "physical" or "imaging"
	Category string `json:"category,omitempty"`
	Item     string `json:"item"`
}

// Examine handles POST /v1/sessions/{id}/exams. Physical exam and
// imaging findings are revealed immediately; repeat examination of a
// revealed item returns the recorded finding.
func (h *SessionHandler) Examine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req ExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'kind' and 'item' fields.")
		return
	}
	if req.Item == "" {
		writeError(w, h.logger, http.StatusBadRequest, "item is required")
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for exam", "scenario_id", s.ScenarioID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		return
	}

	var result string
	switch req.Kind {
	case session.ExamKindPhysical:
		finding, found := sc.PhysicalExam.Finding(req.Item)
		if !found {
			writeError(w, h.logger, http.StatusNotFound, "Unknown exam item")
			return
		}
		result = finding
	case session.ExamKindImaging:
		view, found := sc.Imaging[req.Item]
		if !found {
			writeError(w, h.logger, http.StatusNotFound, "Unknown imaging view")
			return
		}
		result = view.Finding
	default:
		writeError(w, h.logger, http.StatusBadRequest, "kind must be 'physical' or 'imaging'")
		return
	}

	finding, err := s.Examine(req.Kind, req.Category, req.Item, result)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}
	if !h.save(w, r, s) {
		return
	}

	writeJSON(w, h.logger, http.StatusOK, finding)
}

type OrderMedicationRequest struct {
	Name      string  `json:"name"`
	Dose      float64 `json:"dose"`
	Unit      string  `json:"unit"`
	Frequency string  `json:"frequency,omitempty"`
	Route     string  `json:"route,omitempty"`
}

type OrderMedicationResponse struct {
	Order            *session.MedicationOrder `json:"order"`
	Verdict          meds.Verdict             `json:"verdict"`
	Contraindication string                   `json:"contraindication,omitempty"`
}

// OrderMedication handles POST /v1/sessions/{id}/medications. Unsafe
// doses and diagnosis contraindications are advisories; the order
// still goes through and the warnings are captured for the debrief.
func (h *SessionHandler) OrderMedication(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req OrderMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'name', 'dose' and 'unit' fields.")
		return
	}
	if req.Name == "" || req.Dose <= 0 {
		writeError(w, h.logger, http.StatusBadRequest, "name and a positive dose are required")
		return
	}

	order, verdict, err := s.OrderMedication(req.Name, req.Dose, req.Unit, req.Frequency, req.Route)
	if err != nil {
		h.writeCommandError(w, err)
		return
	}

	var contraindication string
	if sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID); err == nil {
		contraindication = meds.CheckContraindication(req.Name, sc.Diagnosis.Primary)
	}

	notice := fmt.Sprintf("Ordered %s %g%s", req.Name, req.Dose, req.Unit)
	if !verdict.OK {
		notice += ". Pharmacy flag: " + verdict.Message
	}
	if err := s.AppendSystemMessage(notice); err != nil {
		h.logger.Warn("Failed to append medication confirmation", "error", err)
	}

	if !h.save(w, r, s) {
		return
	}

	h.logger.Info("Medication ordered",
		"session_id", s.ID,
		"name", req.Name,
		"dose", req.Dose,
		"unit", req.Unit,
		"dose_ok", verdict.OK)

	writeJSON(w, h.logger, http.StatusCreated, OrderMedicationResponse{
		Order:            order,
		Verdict:          verdict,
		Contraindication: contraindication,
	})
}

type SubmitDiagnosisRequest struct {
	Diagnosis string `json:"diagnosis"`
}

type SubmitDiagnosisResponse struct {
	Session *session.Session `json:"session"`
	Debrief *debrief.Debrief `json:"debrief"`
}

// SubmitDiagnosis handles POST /v1/sessions/{id}/diagnosis. The
// session ends and the debrief is computed from the frozen state.
func (h *SessionHandler) SubmitDiagnosis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	var req SubmitDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'diagnosis' field.")
		return
	}
	if req.Diagnosis == "" {
		writeError(w, h.logger, http.StatusBadRequest, "diagnosis is required")
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for diagnosis", "scenario_id", s.ScenarioID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		return
	}

	if err := s.SubmitDiagnosis(req.Diagnosis); err != nil {
		h.writeCommandError(w, err)
		return
	}
	if !h.save(w, r, s) {
		return
	}

	h.scheduler.Cancel(s.ID)
	h.logger.Info("Diagnosis submitted",
		"session_id", s.ID,
		"diagnosis", req.Diagnosis)

	writeJSON(w, h.logger, http.StatusOK, SubmitDiagnosisResponse{
		Session: s,
		Debrief: debrief.Evaluate(s, sc),
	})
}

// Debrief handles GET /v1/sessions/{id}/debrief. The evaluator is a
// pure projection, so a running session gets a live view of where it
// stands; only sessions that never started are rejected.
func (h *SessionHandler) Debrief(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if s.Phase != session.PhaseRunning && s.Phase != session.PhaseEnded {
		writeError(w, h.logger, http.StatusConflict, "Debrief is available once the case is underway")
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for debrief", "scenario_id", s.ScenarioID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load scenario")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, debrief.Evaluate(s, sc))
}
