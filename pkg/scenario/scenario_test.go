package scenario

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScenarioJSON = `{
	"id": "cardiogenic-shock-01",
	"title": "Post-MI Hypotension",
	"difficulty": "intermediate",
	"author": "icu-sim",
	"opening": {
		"caller": "Nurse Chen",
		"message": "Doctor, bed 3 is hypotensive, can you come see him?"
	},
	"patient": {"age": 68, "gender": "M", "bed": "ICU-3", "brief_history": "Admitted after anterior STEMI."},
	"initial_vitals": {"hr": 118, "bp_systolic": 82, "bp_diastolic": 54, "rr": 26, "spo2": 90, "temperature": 36.4},
	"current_status": {"consciousness": "Drowsy", "appearance": "Pale, diaphoretic"},
	"history_context": {"description": "68M with anterior STEMI s/p PCI yesterday.", "key_points": ["Urine output 10 mL/hr", "New crackles"]},
	"physical_exam": {
		"cardiac-jvp": "JVP elevated at 12 cm",
		"cardiac-heart": "S3 gallop present",
		"extremities-temp": "Cold and clammy",
		"abdomen": "Soft, non-tender"
	},
	"lab_results": {
		"hematology": {"wbc": 9.8, "hemoglobin": 13.2, "platelets": 210},
		"cardiac": {"troponin": 12.5, "bnp": 9800},
		"biochemistry": {"lactate": 4.1},
		"infection": {"procalcitonin": 0.2, "crp": 1.2, "blood-culture": "No growth at 24h"},
		"urinalysis": {"urine-protein": "Trace"}
	},
	"pocus_findings": {
		"plax": {"finding": "Severely reduced LV systolic function"},
		"ivc": {"finding": "Dilated IVC, minimal collapse"}
	},
	"diagnosis": {
		"primary": "Cardiogenic Shock",
		"differential": ["Septic Shock", "Hypovolemic Shock"],
		"key_differentiators": ["Elevated JVP", "Cold extremities", "Severely reduced LV function on echo"]
	},
	"optimal_management": {
		"avoid": [{"action": "Large volume fluid bolus", "reason": "Worsens pulmonary edema"}],
		"recommended": [{"action": "Start norepinephrine", "detail": "Target MAP 65"}]
	},
	"learning_points": ["Cold and wet profile suggests cardiogenic shock."]
}`

func loadTestScenario(t *testing.T) *Scenario {
	t.Helper()
	var s Scenario
	require.NoError(t, json.Unmarshal([]byte(testScenarioJSON), &s))
	return &s
}

func TestScenario_Unmarshal(t *testing.T) {
	s := loadTestScenario(t)

	assert.Equal(t, "cardiogenic-shock-01", s.ID)
	assert.Equal(t, "Cardiogenic Shock", s.Diagnosis.Primary)
	assert.Len(t, s.Diagnosis.KeyDifferentiators, 3)
	assert.Equal(t, 118, s.InitialVitals.HR)

	f, ok := s.PhysicalExam.Finding("cardiac-jvp")
	require.True(t, ok)
	assert.Contains(t, f, "JVP elevated")

	_, ok = s.PhysicalExam.Finding("pulmonary-breath")
	assert.False(t, ok)

	require.Contains(t, s.Imaging, "plax")
	assert.Contains(t, s.Imaging["plax"].Finding, "reduced LV")
}

func TestScenario_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr bool
	}{
		{name: "valid", mutate: func(s *Scenario) {}, wantErr: false},
		{name: "missing id", mutate: func(s *Scenario) { s.ID = "" }, wantErr: true},
		{name: "missing title", mutate: func(s *Scenario) { s.Title = "" }, wantErr: true},
		{name: "missing opening", mutate: func(s *Scenario) { s.Opening.Message = "" }, wantErr: true},
		{name: "missing diagnosis", mutate: func(s *Scenario) { s.Diagnosis.Primary = "" }, wantErr: true},
		{name: "missing history context", mutate: func(s *Scenario) { s.HistoryContext.Description = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadTestScenario(t)
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScenario_Summary(t *testing.T) {
	s := loadTestScenario(t)
	sum := s.Summary()
	assert.Equal(t, Summary{
		ID:         "cardiogenic-shock-01",
		Title:      "Post-MI Hypotension",
		Difficulty: "intermediate",
		Author:     "icu-sim",
	}, sum)
}

func TestLabPanel_LabValue(t *testing.T) {
	s := loadTestScenario(t)

	t.Run("numeric in matching category", func(t *testing.T) {
		v := s.LabPanel.LabValue("cardiac", "troponin")
		require.True(t, v.Found)
		assert.False(t, v.IsText)
		assert.Equal(t, 12.5, v.Numeric)
	})

	t.Run("suffixed record label falls back to base category", func(t *testing.T) {
		v := s.LabPanel.LabValue("cardiac_1714", "bnp")
		require.True(t, v.Found)
		assert.Equal(t, float64(9800), v.Numeric)
	})

	t.Run("item found by scanning other categories", func(t *testing.T) {
		// lactate lives under biochemistry, ordered under a different label
		v := s.LabPanel.LabValue("others", "lactate")
		require.True(t, v.Found)
		assert.Equal(t, 4.1, v.Numeric)
	})

	t.Run("culture resolves to text", func(t *testing.T) {
		v := s.LabPanel.LabValue("infection", "blood-culture")
		require.True(t, v.Found)
		assert.True(t, v.IsText)
		assert.Equal(t, "No growth at 24h", v.Text)
	})

	t.Run("qualitative string outside the registry resolves to text", func(t *testing.T) {
		v := s.LabPanel.LabValue("urinalysis", "urine-protein")
		require.True(t, v.Found)
		assert.True(t, v.IsText)
		assert.Equal(t, "Trace", v.Text)
	})

	t.Run("culture without scenario value is pending", func(t *testing.T) {
		v := s.LabPanel.LabValue("infection", "sputum-culture")
		require.True(t, v.Found)
		assert.Equal(t, PendingText, v.Text)
	})

	t.Run("absent item resolves to no value", func(t *testing.T) {
		v := s.LabPanel.LabValue("biochemistry", "ammonia")
		assert.False(t, v.Found)
	})
}

func TestLabPanel_Results(t *testing.T) {
	s := loadTestScenario(t)

	results := s.LabPanel.Results("infection", []string{"procalcitonin", "crp", "blood-culture", "ammonia"})
	require.Len(t, results, 4)

	assert.Equal(t, Result{Item: "procalcitonin", Value: "0.2"}, results[0])
	assert.Equal(t, Result{Item: "crp", Value: "1.2"}, results[1])
	assert.Equal(t, Result{Item: "blood-culture", Value: "No growth at 24h"}, results[2])
	assert.Equal(t, Result{Item: "ammonia", Value: "Not available"}, results[3])

	flagged := s.LabPanel.Results("biochemistry", []string{"lactate"})
	require.Len(t, flagged, 1)
	assert.Equal(t, "high", flagged[0].Flag)
}

func TestAbnormalDirection(t *testing.T) {
	assert.Equal(t, "high", AbnormalDirection("lactate", 4.1))
	assert.Equal(t, "low", AbnormalDirection("ph", 7.21))
	assert.Equal(t, "", AbnormalDirection("sodium", 140))
	assert.Equal(t, "", AbnormalDirection("ferritin", 9000)) // no reference interval
}

func TestIsCultureItem(t *testing.T) {
	assert.True(t, IsCultureItem("blood-culture"))
	assert.True(t, IsCultureItem("wound_culture"))
	assert.False(t, IsCultureItem("troponin"))
}

func TestIsQualitativeItem(t *testing.T) {
	// Case files spell item ids with dashes; both spellings resolve.
	assert.True(t, IsQualitativeItem("blood-culture"))
	assert.True(t, IsQualitativeItem("blood_culture"))
	assert.False(t, IsQualitativeItem("lactate"))
}

func TestVitalDelta_Apply(t *testing.T) {
	v := VitalSigns{HR: 120, BPSystolic: 80, BPDiastolic: 50, RR: 28, SpO2: 88}
	d := VitalDelta{HRDelta: -15, BPSystolicDelta: 12, SpO2Delta: 4}
	got := d.Apply(v)
	assert.Equal(t, 105, got.HR)
	assert.Equal(t, 92, got.BPSystolic)
	assert.Equal(t, 50, got.BPDiastolic)
	assert.Equal(t, 92, got.SpO2)
}
