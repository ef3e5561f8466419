// Package debrief computes the end-of-session outcome report. The
// evaluator is a pure projection over a finished (or live) session and
// its scenario; it never mutates either.
package debrief

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

// Debrief is the structured outcome report.
type Debrief struct {
	Correct            bool     `json:"correct"`
	SubmittedDiagnosis string   `json:"submitted_diagnosis"`
	SubmittedLabel     string   `json:"submitted_label"`
	CorrectDiagnosis   string   `json:"correct_diagnosis"`

	DiscoveredFindings []string `json:"discovered_findings"`
	MissedFindings     []string `json:"missed_findings"`

	AppropriateTreatments     []string `json:"appropriate_treatments"`
	ContraindicatedTreatments []string `json:"contraindicated_treatments"`

	Recommended    []scenario.ManagementAction `json:"recommended"`
	Avoid          []scenario.ManagementAction `json:"avoid"`
	LearningPoints []string                    `json:"learning_points"`
}

// NormalizeDiagnosis converts a display label to its id form:
// lowercased, whitespace runs collapsed to underscores.
// "Cardiogenic Shock" -> "cardiogenic_shock".
func NormalizeDiagnosis(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

var titleCaser = cases.Title(language.English)

// DiagnosisLabel renders a diagnosis id for display:
// "cardiogenic_shock" -> "Cardiogenic Shock".
func DiagnosisLabel(id string) string {
	return titleCaser.String(strings.ReplaceAll(id, "_", " "))
}

// Evaluate computes the debrief. Safe to call repeatedly; identical
// input yields an identical report.
func Evaluate(s *session.Session, sc *scenario.Scenario) *Debrief {
	d := &Debrief{
		SubmittedDiagnosis: s.SubmittedDiagnosis,
		SubmittedLabel:     DiagnosisLabel(s.SubmittedDiagnosis),
		CorrectDiagnosis:   sc.Diagnosis.Primary,
		Correct:            NormalizeDiagnosis(s.SubmittedDiagnosis) == NormalizeDiagnosis(sc.Diagnosis.Primary),
		Recommended:        sc.OptimalManagement.Recommended,
		Avoid:              sc.OptimalManagement.Avoid,
		LearningPoints:     sc.LearningPoints,
	}

	for _, finding := range sc.Diagnosis.KeyDifferentiators {
		if findingDiscovered(finding, s) {
			d.DiscoveredFindings = append(d.DiscoveredFindings, finding)
		} else {
			d.MissedFindings = append(d.MissedFindings, finding)
		}
	}

	cardiogenic := strings.Contains(strings.ToLower(sc.Diagnosis.Primary), "cardiogenic")
	for _, med := range s.Medications {
		name := strings.ToLower(med.Name)
		if cardiogenic && isVolumeExpander(name) {
			d.ContraindicatedTreatments = append(d.ContraindicatedTreatments,
				med.Name+" - fluids in cardiogenic shock worsen pulmonary edema")
			continue
		}
		if isAppropriateVasoactive(name) {
			d.AppropriateTreatments = append(d.AppropriateTreatments, med.Name)
		}
		// drugs matching neither rule are not mentioned in either list
	}

	return d
}
