package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/handoff"
	"github.com/icusim/icu-sim/pkg/scenario"
)

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		ID:         "cardiogenic-shock-01",
		Title:      "Post-MI Hypotension",
		Difficulty: "intermediate",
		Author:     "icu-sim",
		Opening: scenario.Opening{
			Caller:  "Nurse Chen",
			Message: "Doctor, bed 3 is hypotensive, can you come see him?",
		},
		InitialVitals: scenario.VitalSigns{HR: 118, BPSystolic: 82, BPDiastolic: 54, RR: 26, SpO2: 90, Temperature: 36.4},
		CurrentStatus: scenario.CurrentStatus{Consciousness: "Drowsy", Appearance: "Pale, diaphoretic"},
		HistoryContext: scenario.HistoryContext{
			Description: "68M with anterior STEMI s/p PCI yesterday.",
		},
		Diagnosis: scenario.Diagnosis{Primary: "Cardiogenic Shock"},
	}
}

// runningSession returns a session advanced to Running.
func runningSession(t *testing.T) *Session {
	t.Helper()
	s := New("cardiogenic-shock-01")
	require.NoError(t, s.Seed(testScenario()))
	require.NoError(t, s.Start(testScenario()))
	return s
}

func TestNew_StartsLoading(t *testing.T) {
	s := New("cardiogenic-shock-01")
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Equal(t, "cardiogenic-shock-01", s.ScenarioID)
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.ActionLog)
}

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseNotLoaded, PhaseLoading, true},
		{PhaseLoading, PhaseReady, true},
		{PhaseLoading, PhaseLoadError, true},
		{PhaseLoadError, PhaseLoading, true},
		{PhaseReady, PhaseRunning, true},
		{PhaseRunning, PhaseEnded, true},
		{PhaseEnded, PhaseLoading, true},
		{PhaseNotLoaded, PhaseRunning, false},
		{PhaseLoading, PhaseRunning, false},
		{PhaseReady, PhaseEnded, false},
		{PhaseEnded, PhaseRunning, false},
		{PhaseRunning, PhaseReady, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSeed_CopiesVitalsAndStatus(t *testing.T) {
	s := New("cardiogenic-shock-01")
	sc := testScenario()
	require.NoError(t, s.Seed(sc))

	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, sc.InitialVitals, s.Vitals)
	assert.Equal(t, sc.CurrentStatus, s.Status)

	// mutating the session copy must not touch the scenario
	s.Vitals.HR = 60
	assert.Equal(t, 118, sc.InitialVitals.HR)
}

func TestFailLoad_AndRetry(t *testing.T) {
	s := New("missing-scenario")
	require.NoError(t, s.FailLoad())
	assert.Equal(t, PhaseLoadError, s.Phase)

	require.NoError(t, s.RetryLoad())
	assert.Equal(t, PhaseLoading, s.Phase)

	// retry while already loading is idempotent
	require.NoError(t, s.RetryLoad())
	assert.Equal(t, PhaseLoading, s.Phase)
}

func TestStart_SeedsOpeningMessageAndActionLog(t *testing.T) {
	s := New("cardiogenic-shock-01")
	sc := testScenario()
	require.NoError(t, s.Seed(sc))
	require.NoError(t, s.Start(sc))

	assert.Equal(t, PhaseRunning, s.Phase)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, chat.RoleNurse, s.Messages[0].Role)
	assert.Equal(t, sc.Opening.Message, s.Messages[0].Content)

	require.Len(t, s.ActionLog, 1)
	assert.Equal(t, ActionGameStart, s.ActionLog[0].Type)
}

func TestStart_RejectedBeforeSeed(t *testing.T) {
	s := New("cardiogenic-shock-01")
	err := s.Start(testScenario())
	require.Error(t, err)
	assert.True(t, IsWrongPhase(err))
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Empty(t, s.Messages)
}

func TestCommands_RejectedOutsideRunning(t *testing.T) {
	s := New("cardiogenic-shock-01")
	require.NoError(t, s.Seed(testScenario()))
	// Ready, not Running: every gameplay command must no-op

	assert.True(t, IsWrongPhase(s.AppendUserMessage("hello")))
	_, err := s.OrderInvestigations("cbc", []string{"wbc"})
	assert.True(t, IsWrongPhase(err))
	_, err = s.Examine(ExamKindPhysical, "cardiac", "cardiac-jvp", "elevated")
	assert.True(t, IsWrongPhase(err))
	_, _, err = s.OrderMedication("norepinephrine", 0.1, "mcg/kg/min", "", "IV")
	assert.True(t, IsWrongPhase(err))
	assert.True(t, IsWrongPhase(s.SubmitHandoff(handoff.Report{Content: "x"})))
	assert.True(t, IsWrongPhase(s.SubmitDiagnosis("cardiogenic_shock")))

	assert.Empty(t, s.Messages)
	assert.Empty(t, s.Investigations)
	assert.Empty(t, s.Examined)
	assert.Empty(t, s.Medications)
	assert.Empty(t, s.ActionLog)
}

func TestOrderInvestigations(t *testing.T) {
	s := runningSession(t)

	order, err := s.OrderInvestigations("cbc", []string{"wbc", "hb", "hct", "platelet"})
	require.NoError(t, err)
	assert.Equal(t, "cbc", order.Label)
	assert.False(t, order.ResultsAvailable)
	assert.Len(t, s.Investigations, 1)

	// duplicate leaf item rejects the whole order
	_, err = s.OrderInvestigations("cbc_repeat", []string{"platelet", "mpv"})
	require.Error(t, err)
	assert.True(t, IsDuplicateOrder(err))
	assert.Len(t, s.Investigations, 1)
}

func TestOrderInvestigations_DuplicateIsNoOpRepeatedly(t *testing.T) {
	s := runningSession(t)
	_, err := s.OrderInvestigations("cardiac", []string{"troponin_i"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = s.OrderInvestigations("cardiac", []string{"troponin_i"})
		assert.True(t, IsDuplicateOrder(err))
	}

	// exactly one entry references the item
	count := 0
	for _, order := range s.Investigations {
		for _, item := range order.Items {
			if item == "troponin_i" {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestOrderInvestigations_LabelsStayUnique(t *testing.T) {
	s := runningSession(t)
	first, err := s.OrderInvestigations("biochemistry", []string{"bun", "cr"})
	require.NoError(t, err)
	second, err := s.OrderInvestigations("biochemistry", []string{"na", "k"})
	require.NoError(t, err)

	assert.Equal(t, "biochemistry", first.Label)
	assert.Equal(t, "biochemistry_2", second.Label)
	assert.NotEqual(t, first.Label, second.Label)
}

func TestMarkResultsAvailable(t *testing.T) {
	s := runningSession(t)
	order, err := s.OrderInvestigations("infection", []string{"procalcitonin", "lactate"})
	require.NoError(t, err)

	s.MarkResultsAvailable(order.Label)
	assert.True(t, s.Investigations[0].ResultsAvailable)

	// idempotent; never flips back
	s.MarkResultsAvailable(order.Label)
	assert.True(t, s.Investigations[0].ResultsAvailable)

	// unknown label is a no-op
	s.MarkResultsAvailable("nonexistent")
	assert.Len(t, s.AvailableInvestigations(), 1)
}

func TestExamine_Idempotent(t *testing.T) {
	s := runningSession(t)

	first, err := s.Examine(ExamKindPhysical, "cardiac", "cardiac-jvp", "JVP elevated at 12 cm")
	require.NoError(t, err)
	assert.Equal(t, "JVP elevated at 12 cm", first.Result)
	assert.Len(t, s.Examined, 1)
	assert.Len(t, s.ActionLog, 2) // game_start + exam

	// re-examining returns the recorded result, appends nothing
	again, err := s.Examine(ExamKindPhysical, "cardiac", "cardiac-jvp", "some other text")
	require.NoError(t, err)
	assert.Equal(t, "JVP elevated at 12 cm", again.Result)
	assert.Len(t, s.Examined, 1)
	assert.Len(t, s.ActionLog, 2)
}

func TestExamine_ImagingTracked(t *testing.T) {
	s := runningSession(t)
	assert.False(t, s.ImagingDone())

	_, err := s.Examine(ExamKindImaging, "", "plax", "Severely reduced LV function")
	require.NoError(t, err)
	assert.True(t, s.ImagingDone())
	assert.True(t, s.HasExamined("plax"))
	assert.Equal(t, ActionImaging, s.ActionLog[1].Type)
}

func TestOrderMedication_CapturesVerdict(t *testing.T) {
	s := runningSession(t)

	order, verdict, err := s.OrderMedication("norepinephrine", 1.0, "mcg/kg/min", "continuous", "IV")
	require.NoError(t, err)
	assert.False(t, verdict.OK)
	assert.NotEmpty(t, order.Warning)

	order2, verdict2, err := s.OrderMedication("norepinephrine", 0.1, "mcg/kg/min", "continuous", "IV")
	require.NoError(t, err)
	assert.True(t, verdict2.OK)
	assert.Empty(t, order2.Warning)

	// both orders recorded; the first verdict was not recomputed
	require.Len(t, s.Medications, 2)
	assert.NotEmpty(t, s.Medications[0].Warning)
	assert.Empty(t, s.Medications[1].Warning)
}

func TestSubmitHandoff_SetOnce(t *testing.T) {
	s := runningSession(t)

	require.NoError(t, s.SubmitHandoff(handoff.Report{Content: "68M post-MI, cardiogenic shock"}))
	err := s.SubmitHandoff(handoff.Report{Content: "second attempt"})
	assert.Error(t, err)
	assert.Equal(t, "68M post-MI, cardiogenic shock", s.HandoffReport.Content)
}

func TestSetHandoffFeedback(t *testing.T) {
	s := runningSession(t)

	f := handoff.FallbackFeedback()
	require.NoError(t, s.SetHandoffFeedback(f))
	assert.Equal(t, 70, s.HandoffFeedback.Score)

	// second verdict ignored
	require.NoError(t, s.SetHandoffFeedback(&handoff.Feedback{Overall: handoff.OverallExcellent, Score: 95}))
	assert.Equal(t, 70, s.HandoffFeedback.Score)

	// still accepted after the session ends (late-arriving grade)
	s2 := runningSession(t)
	require.NoError(t, s2.SubmitDiagnosis("cardiogenic_shock"))
	require.NoError(t, s2.SetHandoffFeedback(f))
}

func TestSubmitDiagnosis_EndsSession(t *testing.T) {
	s := runningSession(t)

	require.NoError(t, s.SubmitDiagnosis("cardiogenic_shock"))
	assert.Equal(t, PhaseEnded, s.Phase)
	assert.Equal(t, "cardiogenic_shock", s.SubmittedDiagnosis)

	last := s.ActionLog[len(s.ActionLog)-1]
	assert.Equal(t, ActionGameEnd, last.Type)

	// terminal: further gameplay commands are rejected
	assert.True(t, IsWrongPhase(s.AppendUserMessage("too late")))
	err := s.SubmitDiagnosis("septic_shock")
	assert.True(t, IsWrongPhase(err))
	assert.Equal(t, "cardiogenic_shock", s.SubmittedDiagnosis)
}

func TestReset_NothingCarriesOver(t *testing.T) {
	s := runningSession(t)
	_, err := s.OrderInvestigations("cbc", []string{"wbc"})
	require.NoError(t, err)
	_, _, err = s.OrderMedication("ns", 500, "mL", "", "IV")
	require.NoError(t, err)
	require.NoError(t, s.SubmitDiagnosis("septic_shock"))

	fresh := New(s.ScenarioID)
	assert.Equal(t, PhaseLoading, fresh.Phase)
	assert.NotEqual(t, s.ID, fresh.ID)
	assert.Empty(t, fresh.Messages)
	assert.Empty(t, fresh.Investigations)
	assert.Empty(t, fresh.Examined)
	assert.Empty(t, fresh.Medications)
	assert.Empty(t, fresh.ActionLog)
	assert.Empty(t, fresh.SubmittedDiagnosis)
	assert.Nil(t, fresh.HandoffReport)
	assert.Nil(t, fresh.HandoffFeedback)
}

func TestHasOrderedCategory(t *testing.T) {
	s := runningSession(t)
	_, err := s.OrderInvestigations("infection", []string{"procalcitonin"})
	require.NoError(t, err)

	assert.True(t, s.HasOrderedCategory("infection"))
	assert.False(t, s.HasOrderedCategory("cbc"))
}
