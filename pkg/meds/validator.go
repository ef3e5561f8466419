// Package meds holds the medication registry and the dose safety
// validator. Validation is a pure function over the registry: it has
// no knowledge of session history, and ordering the same drug twice
// produces two independent verdicts.
package meds

import (
	"fmt"
	"strings"
)

// Severity of an out-of-range verdict.
type Severity string

const (
	SeverityTooLow  Severity = "too_low"
	SeverityTooHigh Severity = "too_high"
)

// Verdict is the result of validating one (drug, dose) pair. OK is
// true for in-range doses and for drugs the registry does not know;
// anything outside the registry is assumed safe.
type Verdict struct {
	OK             bool     `json:"ok"`
	Severity       Severity `json:"severity,omitempty"`
	Message        string   `json:"message,omitempty"`
	SuggestedRange string   `json:"suggested_range,omitempty"`
}

// DoseRange is the closed safety interval for one drug, with optional
// drug-specific rationale for each direction.
type DoseRange struct {
	Min         float64
	Max         float64
	Unit        string
	WarningHigh string
	WarningLow  string
}

var registry = map[string]DoseRange{
	// Vasopressors
	"norepinephrine": {
		Min: 0.01, Max: 0.5, Unit: "mcg/kg/min",
		WarningHigh: "Norepinephrine dose is high; usual starting range is 0.05-0.1 mcg/kg/min",
		WarningLow:  "Norepinephrine dose is low and likely ineffective",
	},
	"dopamine": {
		Min: 2, Max: 20, Unit: "mcg/kg/min",
		WarningHigh: "Dopamine above 20 mcg/kg/min raises the risk of arrhythmia",
		WarningLow:  "Dopamine below 2 mcg/kg/min gives mainly a renal-dose effect",
	},
	"vasopressin": {
		Min: 0.01, Max: 0.04, Unit: "units/min",
		WarningHigh: "Vasopressin should not exceed 0.04 units/min",
	},
	"epinephrine": {
		Min: 0.01, Max: 0.3, Unit: "mcg/kg/min",
		WarningHigh: "Epinephrine dose is high; watch for arrhythmia",
	},

	// Inotropes
	"dobutamine": {
		Min: 2.5, Max: 20, Unit: "mcg/kg/min",
		WarningHigh: "Dobutamine above 20 mcg/kg/min adds little benefit and more side effects",
	},
	"milrinone": {
		Min: 0.25, Max: 0.75, Unit: "mcg/kg/min",
		WarningHigh: "Milrinone should not exceed 0.75 mcg/kg/min",
	},

	// Fluids
	"ns": {
		Min: 100, Max: 2000, Unit: "mL",
		WarningHigh: "Large volume infusion needs a volume status check; be careful in cardiogenic shock",
	},
	"lr": {
		Min: 100, Max: 2000, Unit: "mL",
		WarningHigh: "Large volume infusion needs a volume status check; be careful in cardiogenic shock",
	},
	"albumin": {
		Min: 100, Max: 500, Unit: "mL",
		WarningHigh: "Albumin single dose should not exceed 500 mL",
	},

	// Diuretics
	"furosemide": {
		Min: 20, Max: 200, Unit: "mg",
		WarningHigh: "Single furosemide doses above 200 mg IV need caution; consider split dosing or continuous infusion",
		WarningLow:  "Furosemide below 20 mg is often ineffective in ICU patients",
	},

	// Antibiotics
	"ceftriaxone": {
		Min: 1, Max: 4, Unit: "g",
		WarningHigh: "Ceftriaxone generally should not exceed 4 g/day",
	},
	"piptazo": {
		Min: 2.25, Max: 4.5, Unit: "g",
		WarningHigh: "Piperacillin/tazobactam single dose should not exceed 4.5 g",
	},
	"vancomycin": {
		Min: 0.5, Max: 2, Unit: "g",
		WarningHigh: "Vancomycin single doses above 2 g need a renal function check",
	},

	// Steroids
	"hydrocortisone": {
		Min: 25, Max: 100, Unit: "mg",
		WarningHigh: "Hydrocortisone single doses above 100 mg are unusual; confirm the indication",
	},
}

// Range returns the registered safety range for a drug id.
func Range(drugID string) (DoseRange, bool) {
	r, ok := registry[strings.ToLower(drugID)]
	return r, ok
}

// Validate maps a (drug, dose) pair to a safety verdict. Unknown drug
// ids are always valid.
func Validate(drugID string, dose float64, unit string) Verdict {
	r, ok := Range(drugID)
	if !ok {
		return Verdict{OK: true}
	}

	suggested := fmt.Sprintf("%g-%g %s", r.Min, r.Max, r.Unit)

	if dose > r.Max {
		msg := r.WarningHigh
		if msg == "" {
			msg = fmt.Sprintf("Dose is high (suggested: %s)", suggested)
		}
		return Verdict{
			OK:             false,
			Severity:       SeverityTooHigh,
			Message:        msg,
			SuggestedRange: suggested,
		}
	}

	if dose < r.Min {
		msg := r.WarningLow
		if msg == "" {
			msg = fmt.Sprintf("Dose is low (suggested: %s)", suggested)
		}
		return Verdict{
			OK:             false,
			Severity:       SeverityTooLow,
			Message:        msg,
			SuggestedRange: suggested,
		}
	}

	return Verdict{OK: true}
}

// CheckContraindication flags drug choices that are dangerous for the
// given diagnosis regardless of dose. Returns "" when nothing applies.
func CheckContraindication(drugID string, diagnosis string) string {
	id := strings.ToLower(drugID)
	if (id == "ns" || id == "lr") && strings.Contains(strings.ToLower(diagnosis), "cardiogenic") {
		return "Caution: large volume fluids in cardiogenic shock can worsen pulmonary edema"
	}
	return ""
}
