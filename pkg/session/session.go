// Package session implements the authoritative state of one training
// playthrough: the phase machine, the message transcript, the
// investigation ledger, and the player action log. All mutation goes
// through command methods; callers hold read-only projections.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/handoff"
	"github.com/icusim/icu-sim/pkg/meds"
	"github.com/icusim/icu-sim/pkg/scenario"
)

// Session owns all mutable state of one playthrough. The scenario is
// shared and read-only; vitals and status are mutable copies seeded
// from it on load.
type Session struct {
	ID         uuid.UUID `json:"id"`
	ScenarioID string    `json:"scenario_id"`
	Phase      Phase     `json:"phase"`

	Vitals scenario.VitalSigns    `json:"vitals"`
	Status scenario.CurrentStatus `json:"status"`

	Messages       []chat.Message       `json:"messages,omitempty"`
	Investigations []InvestigationOrder `json:"investigations,omitempty"`
	Examined       []ExaminedFinding    `json:"examined,omitempty"`
	Medications    []MedicationOrder    `json:"medications,omitempty"`
	ActionLog      []Action             `json:"action_log,omitempty"`

	SubmittedDiagnosis string            `json:"submitted_diagnosis,omitempty"`
	HandoffReport      *handoff.Report   `json:"handoff_report,omitempty"`
	HandoffFeedback    *handoff.Feedback `json:"handoff_feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session in Loading phase for the given scenario id.
// Reset is modeled as discarding the old session and calling New; no
// state carries over and the fresh uuid lets stale timer callbacks and
// gateway results be recognized and dropped.
func New(scenarioID string) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.New(),
		ScenarioID: scenarioID,
		Phase:      PhaseLoading,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (s *Session) transition(to Phase, command string) error {
	if !CanTransition(s.Phase, to) {
		return &ErrWrongPhase{Command: command, Phase: s.Phase}
	}
	s.Phase = to
	s.UpdatedAt = time.Now()
	return nil
}

func (s *Session) ensureRunning(command string) error {
	if s.Phase != PhaseRunning {
		return &ErrWrongPhase{Command: command, Phase: s.Phase}
	}
	return nil
}

// Seed completes a successful load: vitals and status are copied from
// the scenario and the session becomes Ready.
func (s *Session) Seed(sc *scenario.Scenario) error {
	if err := s.transition(PhaseReady, "seed"); err != nil {
		return err
	}
	s.ScenarioID = sc.ID
	s.Vitals = sc.InitialVitals
	s.Status = sc.CurrentStatus
	return nil
}

// FailLoad marks the load as failed. The player may retry.
func (s *Session) FailLoad() error {
	return s.transition(PhaseLoadError, "fail_load")
}

// RetryLoad restarts a failed load. Idempotent: retrying while already
// Loading is a no-op.
func (s *Session) RetryLoad() error {
	if s.Phase == PhaseLoading {
		return nil
	}
	return s.transition(PhaseLoading, "retry_load")
}

// Start begins play: the transcript is seeded with the scenario's
// opening nurse line and a game_start entry brackets the action log.
// This is the only transition that produces the first message.
func (s *Session) Start(sc *scenario.Scenario) error {
	if err := s.transition(PhaseRunning, "start"); err != nil {
		return err
	}
	s.Messages = []chat.Message{chat.NewMessage(chat.RoleNurse, sc.Opening.Message)}
	s.ActionLog = []Action{newAction(ActionGameStart,
		fmt.Sprintf("Scenario started: %s", sc.Title),
		map[string]any{"scenario_id": sc.ID})}
	return nil
}

// AppendUserMessage records a learner chat message.
func (s *Session) AppendUserMessage(content string) error {
	if err := s.ensureRunning("chat"); err != nil {
		return err
	}
	s.Messages = append(s.Messages, chat.NewMessage(chat.RoleUser, content))
	s.ActionLog = append(s.ActionLog, newAction(ActionChat, content, nil))
	s.UpdatedAt = time.Now()
	return nil
}

// AppendNurseMessage records a nurse reply from the NLG collaborator.
func (s *Session) AppendNurseMessage(content string) error {
	if err := s.ensureRunning("nurse_reply"); err != nil {
		return err
	}
	s.Messages = append(s.Messages, chat.NewMessage(chat.RoleNurse, content))
	s.UpdatedAt = time.Now()
	return nil
}

// AppendSystemMessage records an order confirmation or notice.
func (s *Session) AppendSystemMessage(content string) error {
	if err := s.ensureRunning("system_message"); err != nil {
		return err
	}
	s.Messages = append(s.Messages, chat.NewMessage(chat.RoleSystem, content))
	s.UpdatedAt = time.Now()
	return nil
}

// OrderInvestigations creates a ledger entry for a category and its
// constituent items. Any item already present in the ledger rejects
// the whole order with ErrDuplicateOrder. The returned entry carries
// the unique record label timers key availability updates by.
func (s *Session) OrderInvestigations(category string, items []string) (*InvestigationOrder, error) {
	if err := s.ensureRunning("order_investigations"); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to order")
	}
	for _, item := range items {
		if s.hasOrderedItem(item) {
			return nil, &ErrDuplicateOrder{Item: item}
		}
	}

	order := InvestigationOrder{
		Label:     s.uniqueOrderLabel(category),
		Category:  category,
		Items:     append([]string(nil), items...),
		OrderedAt: time.Now(),
	}
	s.Investigations = append(s.Investigations, order)
	s.ActionLog = append(s.ActionLog, newAction(ActionLabOrder,
		fmt.Sprintf("Ordered %s: %s", category, strings.Join(items, ", ")),
		map[string]any{"category": category, "items": items}))
	s.UpdatedAt = time.Now()
	return &s.Investigations[len(s.Investigations)-1], nil
}

// MarkResultsAvailable flips one ledger entry to available. Idempotent:
// timer callbacks may race a reset and re-fire safely. Availability
// never flips back.
func (s *Session) MarkResultsAvailable(label string) {
	for i := range s.Investigations {
		if s.Investigations[i].Label == label {
			if !s.Investigations[i].ResultsAvailable {
				s.Investigations[i].ResultsAvailable = true
				s.UpdatedAt = time.Now()
			}
			return
		}
	}
}

// AvailableInvestigations returns the ledger entries whose results
// have arrived.
func (s *Session) AvailableInvestigations() []InvestigationOrder {
	var out []InvestigationOrder
	for _, order := range s.Investigations {
		if order.ResultsAvailable {
			out = append(out, order)
		}
	}
	return out
}

// Examine reveals a physical-exam or imaging item. Re-examining a
// revealed item returns the recorded finding without appending a
// duplicate entry.
func (s *Session) Examine(kind, category, item, result string) (*ExaminedFinding, error) {
	if err := s.ensureRunning("examine"); err != nil {
		return nil, err
	}
	for i := range s.Examined {
		if s.Examined[i].Item == item {
			return &s.Examined[i], nil
		}
	}

	finding := ExaminedFinding{
		Kind:       kind,
		Category:   category,
		Item:       item,
		Result:     result,
		ExaminedAt: time.Now(),
	}
	s.Examined = append(s.Examined, finding)

	actionType := ActionPhysicalExam
	if kind == ExamKindImaging {
		actionType = ActionImaging
	}
	s.ActionLog = append(s.ActionLog, newAction(actionType,
		fmt.Sprintf("Examined %s", item),
		map[string]any{"item": item, "kind": kind}))
	s.UpdatedAt = time.Now()
	return &s.Examined[len(s.Examined)-1], nil
}

// HasExamined reports whether an item has been revealed.
func (s *Session) HasExamined(item string) bool {
	for _, e := range s.Examined {
		if e.Item == item {
			return true
		}
	}
	return false
}

// ImagingDone reports whether any imaging view has been examined.
func (s *Session) ImagingDone() bool {
	for _, e := range s.Examined {
		if e.Kind == ExamKindImaging {
			return true
		}
	}
	return false
}

// HasOrderedCategory reports whether any ledger entry was ordered
// under the given base category.
func (s *Session) HasOrderedCategory(category string) bool {
	for _, order := range s.Investigations {
		if order.Category == category {
			return true
		}
	}
	return false
}

// OrderMedication records a medication order with the dose-safety
// verdict captured now. A non-ok verdict is an advisory, not an error;
// the order still goes through.
func (s *Session) OrderMedication(name string, dose float64, unit, frequency, route string) (*MedicationOrder, meds.Verdict, error) {
	if err := s.ensureRunning("order_medication"); err != nil {
		return nil, meds.Verdict{}, err
	}

	verdict := meds.Validate(name, dose, unit)
	order := MedicationOrder{
		ID:        uuid.NewString(),
		Name:      name,
		Dose:      dose,
		Unit:      unit,
		Frequency: frequency,
		Route:     route,
		OrderedAt: time.Now(),
		Warning:   verdict.Message,
	}
	s.Medications = append(s.Medications, order)
	s.ActionLog = append(s.ActionLog, newAction(ActionMedication,
		fmt.Sprintf("Ordered %s %g %s", name, dose, unit),
		map[string]any{"name": name, "dose": dose, "unit": unit}))
	s.UpdatedAt = time.Now()
	return &s.Medications[len(s.Medications)-1], verdict, nil
}

// SubmitHandoff records the learner's report. Set at most once.
func (s *Session) SubmitHandoff(report handoff.Report) error {
	if err := s.ensureRunning("submit_handoff"); err != nil {
		return err
	}
	if s.HandoffReport != nil {
		return fmt.Errorf("handoff report already submitted")
	}
	if err := report.Validate(); err != nil {
		return err
	}
	s.HandoffReport = &report
	s.ActionLog = append(s.ActionLog, newAction(ActionHandoff, "Handoff report submitted", nil))
	s.UpdatedAt = time.Now()
	return nil
}

// SetHandoffFeedback attaches the grader's verdict. The call arrives
// asynchronously; results for a since-reset session are dropped by the
// caller's identity check, and a second verdict is ignored.
func (s *Session) SetHandoffFeedback(f *handoff.Feedback) error {
	if s.Phase != PhaseRunning && s.Phase != PhaseEnded {
		return &ErrWrongPhase{Command: "handoff_feedback", Phase: s.Phase}
	}
	if s.HandoffFeedback != nil {
		return nil
	}
	s.HandoffFeedback = f
	s.UpdatedAt = time.Now()
	return nil
}

// SubmitDiagnosis ends the session. Terminal: the debrief is computed
// from the state frozen here.
func (s *Session) SubmitDiagnosis(diagnosis string) error {
	if err := s.ensureRunning("submit_diagnosis"); err != nil {
		return err
	}
	if err := s.transition(PhaseEnded, "submit_diagnosis"); err != nil {
		return err
	}
	s.SubmittedDiagnosis = diagnosis
	s.ActionLog = append(s.ActionLog, newAction(ActionGameEnd,
		fmt.Sprintf("Diagnosis submitted: %s", diagnosis),
		map[string]any{"diagnosis": diagnosis}))
	return nil
}
