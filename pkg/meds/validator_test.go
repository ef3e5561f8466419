package meds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		drugID       string
		dose         float64
		unit         string
		wantOK       bool
		wantSeverity Severity
	}{
		{name: "norepinephrine in range", drugID: "norepinephrine", dose: 0.1, unit: "mcg/kg/min", wantOK: true},
		{name: "norepinephrine too high", drugID: "norepinephrine", dose: 1.0, unit: "mcg/kg/min", wantOK: false, wantSeverity: SeverityTooHigh},
		{name: "norepinephrine too low", drugID: "norepinephrine", dose: 0.001, unit: "mcg/kg/min", wantOK: false, wantSeverity: SeverityTooLow},
		{name: "dose at range min is valid", drugID: "dobutamine", dose: 2.5, unit: "mcg/kg/min", wantOK: true},
		{name: "dose at range max is valid", drugID: "dobutamine", dose: 20, unit: "mcg/kg/min", wantOK: true},
		{name: "furosemide too high", drugID: "furosemide", dose: 500, unit: "mg", wantOK: false, wantSeverity: SeverityTooHigh},
		{name: "vasopressin too high has drug-specific message", drugID: "vasopressin", dose: 0.1, unit: "units/min", wantOK: false, wantSeverity: SeverityTooHigh},
		{name: "unknown drug is always valid", drugID: "unknown_drug", dose: 999, unit: "mg", wantOK: true},
		{name: "drug id is case insensitive", drugID: "Dopamine", dose: 50, unit: "mcg/kg/min", wantOK: false, wantSeverity: SeverityTooHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.drugID, tt.dose, tt.unit)
			assert.Equal(t, tt.wantOK, v.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantSeverity, v.Severity)
				assert.NotEmpty(t, v.Message)
				assert.NotEmpty(t, v.SuggestedRange)
			}
		})
	}
}

func TestValidate_IsPure(t *testing.T) {
	first := Validate("dopamine", 25, "mcg/kg/min")
	second := Validate("dopamine", 25, "mcg/kg/min")
	assert.Equal(t, first, second)
}

func TestValidate_TooHighMessageIsDrugSpecific(t *testing.T) {
	v := Validate("dopamine", 50, "mcg/kg/min")
	assert.Contains(t, v.Message, "arrhythmia")
	assert.Equal(t, "2-20 mcg/kg/min", v.SuggestedRange)
}

func TestValidate_GenericLowMessage(t *testing.T) {
	// ceftriaxone has no drug-specific low warning
	v := Validate("ceftriaxone", 0.25, "g")
	assert.False(t, v.OK)
	assert.Equal(t, SeverityTooLow, v.Severity)
	assert.Contains(t, v.Message, "suggested")
}

func TestCheckContraindication(t *testing.T) {
	assert.NotEmpty(t, CheckContraindication("ns", "Cardiogenic Shock"))
	assert.NotEmpty(t, CheckContraindication("lr", "cardiogenic shock"))
	assert.Empty(t, CheckContraindication("ns", "Septic Shock"))
	assert.Empty(t, CheckContraindication("norepinephrine", "Cardiogenic Shock"))
}
