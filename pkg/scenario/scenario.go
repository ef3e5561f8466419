package scenario

import "fmt"

// Scenario is the authoritative description of one training case.
// It is loaded once per session and never mutated; sessions hold a
// read-only reference and copy anything they need to change.
type Scenario struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"` // "beginner", "intermediate", "advanced"
	Author     string `json:"author"`
	Version    string `json:"version,omitempty"`

	Opening        Opening        `json:"opening"`
	Patient        Patient        `json:"patient"`
	InitialVitals  VitalSigns     `json:"initial_vitals"`
	CurrentStatus  CurrentStatus  `json:"current_status"`
	HistoryContext HistoryContext `json:"history_context"`

	PhysicalExam PhysicalExam `json:"physical_exam"`
	LabPanel     LabPanel     `json:"lab_results"`
	Imaging      Imaging      `json:"pocus_findings"`

	Diagnosis         Diagnosis         `json:"diagnosis"`
	OptimalManagement OptimalManagement `json:"optimal_management"`
	LearningPoints    []string          `json:"learning_points"`

	// v2 extensions for dynamic patient state. Optional; absent in v1 cases.
	VitalTransitions        []VitalTransition        `json:"vital_transitions,omitempty"`
	DeteriorationThresholds *DeteriorationThresholds `json:"deterioration_thresholds,omitempty"`
	HandoffEvaluation       *HandoffEvaluation       `json:"handoff_evaluation,omitempty"`
}

// Summary is the listing projection of a scenario.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Author     string `json:"author"`
}

// Opening is the nurse line that starts a session.
type Opening struct {
	Caller  string `json:"caller"`
	Message string `json:"message"`
}

type Patient struct {
	Age          int    `json:"age"`
	Gender       string `json:"gender"` // "M" or "F"
	Bed          string `json:"bed"`
	BriefHistory string `json:"brief_history"`
}

type VitalSigns struct {
	HR          int     `json:"hr"`
	BPSystolic  int     `json:"bp_systolic"`
	BPDiastolic int     `json:"bp_diastolic"`
	RR          int     `json:"rr"`
	SpO2        int     `json:"spo2"`
	Temperature float64 `json:"temperature"`
}

type CurrentStatus struct {
	Consciousness string `json:"consciousness"`
	Appearance    string `json:"appearance"`
}

// HistoryContext is the nurse-facing background used to ground
// chat replies. It is sent to the NLG collaborator, never shown raw
// to the player.
type HistoryContext struct {
	Description string   `json:"description"`
	KeyPoints   []string `json:"key_points"`
}

// PhysicalExam maps exam item ids (e.g. "cardiac-jvp",
// "extremities-temp", "abdomen") to their finding text.
type PhysicalExam map[string]string

// Finding returns the result text for an exam item id.
func (pe PhysicalExam) Finding(item string) (string, bool) {
	f, ok := pe[item]
	return f, ok
}

// LabPanel maps lab category -> item id -> value. Numeric results
// unmarshal as float64; culture and urinalysis items are strings.
type LabPanel map[string]map[string]any

// Imaging maps view ids (plax, psax, a4c, subcostal, ivc, lung)
// to their findings.
type Imaging map[string]ImagingView

type ImagingView struct {
	Video   string `json:"video,omitempty"`
	Image   string `json:"image,omitempty"`
	Finding string `json:"finding"`
}

type Diagnosis struct {
	Primary            string   `json:"primary"`
	Differential       []string `json:"differential"`
	KeyDifferentiators []string `json:"key_differentiators"`
}

type OptimalManagement struct {
	Avoid       []ManagementAction `json:"avoid"`
	Recommended []ManagementAction `json:"recommended"`
}

type ManagementAction struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// VitalTransition describes a scheduled change to the patient's vitals,
// triggered by a medication order or cumulative volume.
type VitalTransition struct {
	Trigger      TransitionTrigger `json:"trigger"`
	DelaySeconds int               `json:"delay_seconds"`
	Effect       VitalDelta        `json:"effect"`
	NurseMessage string            `json:"nurse_message"`
}

type TransitionTrigger struct {
	Medication string `json:"medication,omitempty"`
	VolumeGT   int    `json:"volume_gt,omitempty"`
}

type VitalDelta struct {
	HRDelta          int `json:"hr_delta,omitempty"`
	BPSystolicDelta  int `json:"bp_systolic_delta,omitempty"`
	BPDiastolicDelta int `json:"bp_diastolic_delta,omitempty"`
	RRDelta          int `json:"rr_delta,omitempty"`
	SpO2Delta        int `json:"spo2_delta,omitempty"`
}

// Apply returns vitals with the delta applied.
func (d VitalDelta) Apply(v VitalSigns) VitalSigns {
	v.HR += d.HRDelta
	v.BPSystolic += d.BPSystolicDelta
	v.BPDiastolic += d.BPDiastolicDelta
	v.RR += d.RRDelta
	v.SpO2 += d.SpO2Delta
	return v
}

type DeteriorationThresholds struct {
	TriggerACLS ACLSTrigger `json:"trigger_acls"`
}

type ACLSTrigger struct {
	HRLt         int `json:"hr_lt,omitempty"`
	HRGt         int `json:"hr_gt,omitempty"`
	BPSystolicLt int `json:"bp_systolic_lt,omitempty"`
	SpO2Lt       int `json:"spo2_lt,omitempty"`
}

type HandoffEvaluation struct {
	RequiredMentions []string `json:"required_mentions"`
	CriticalErrors   []string `json:"critical_errors"`
}

// Summary returns the listing projection.
func (s *Scenario) Summary() Summary {
	return Summary{
		ID:         s.ID,
		Title:      s.Title,
		Difficulty: s.Difficulty,
		Author:     s.Author,
	}
}

// Validate checks the fields a session cannot run without.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("scenario title is required")
	}
	if s.Opening.Message == "" {
		return fmt.Errorf("scenario opening message is required")
	}
	if s.Diagnosis.Primary == "" {
		return fmt.Errorf("scenario primary diagnosis is required")
	}
	if s.HistoryContext.Description == "" {
		return fmt.Errorf("scenario history context is required")
	}
	return nil
}
