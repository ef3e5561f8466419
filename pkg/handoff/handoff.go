// Package handoff defines the learner's end-of-case report and the
// structured feedback returned by the grading collaborator.
package handoff

import (
	"fmt"
	"strings"
)

const (
	OverallExcellent        = "excellent"
	OverallGood             = "good"
	OverallNeedsImprovement = "needs_improvement"
)

// Report is the learner's handoff. Two shapes are accepted: free text
// in Content, or the four SBAR fields. When Content is empty the SBAR
// fields are flattened into the graded text.
type Report struct {
	Content        string `json:"content,omitempty"`
	Situation      string `json:"situation,omitempty"`
	Background     string `json:"background,omitempty"`
	Assessment     string `json:"assessment,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Text returns the report as a single graded string.
func (r Report) Text() string {
	if r.Content != "" {
		return r.Content
	}
	sections := []struct{ label, body string }{
		{"Situation", r.Situation},
		{"Background", r.Background},
		{"Assessment", r.Assessment},
		{"Recommendation", r.Recommendation},
	}
	var parts []string
	for _, s := range sections {
		if s.body != "" {
			parts = append(parts, s.label+": "+s.body)
		}
	}
	return strings.Join(parts, "\n")
}

func (r Report) Validate() error {
	if r.Text() == "" {
		return fmt.Errorf("report is empty: provide content or SBAR fields")
	}
	return nil
}

// Feedback is the grader's structured verdict.
type Feedback struct {
	Overall       string   `json:"overall"` // excellent | good | needs_improvement
	Score         int      `json:"score"`   // 0-100
	Strengths     []string `json:"strengths"`
	MissedPoints  []string `json:"missedPoints"`
	Suggestions   []string `json:"suggestions"`
	SeniorComment string   `json:"seniorComment"`
}

// FallbackFeedback is returned when the grading collaborator is
// unreachable or its reply cannot be parsed. The session must always
// be able to proceed to the debrief, so grading never hard-fails.
func FallbackFeedback() *Feedback {
	return &Feedback{
		Overall:      OverallGood,
		Score:        70,
		Strengths:    []string{"Completed a handoff report"},
		MissedPoints: []string{"Detailed evaluation unavailable"},
		Suggestions:  []string{"Check the connection and try again"},
		SeniorComment: "Good work getting through the handoff. The system could not " +
			"complete a full evaluation this time, but practicing the report is " +
			"what matters. Keep it up.",
	}
}

// Valid reports whether the grader returned a usable verdict.
func (f *Feedback) Valid() bool {
	if f == nil {
		return false
	}
	switch f.Overall {
	case OverallExcellent, OverallGood, OverallNeedsImprovement:
	default:
		return false
	}
	return f.Score >= 0 && f.Score <= 100
}
