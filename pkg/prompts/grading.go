package prompts

import (
	"fmt"
	"strings"

	"github.com/icusim/icu-sim/pkg/scenario"
	"github.com/icusim/icu-sim/pkg/session"
)

// gradingPrompt frames the senior ICU attending persona that grades
// the learner's phone handoff. The reply must be a single JSON object
// matching handoff.Feedback.
const gradingPrompt = `You are a senior ICU attending physician. A resident is calling you to hand off a patient.

Evaluate the quality of this verbal handoff report and give constructive feedback.

A good handoff covers:
1. Patient identity and the current main problem
2. Relevant history and reason for admission
3. Important physical exam findings
4. Key lab and imaging results
5. The resident's clinical judgment (diagnosis, differentials)
6. Interventions done so far
7. The plan, and anything they need from you

Evaluate against this information:

[Ground truth]
Diagnosis: %s
Key differentiators: %s

[Actions the resident took]
- Physical exams: %s
- Labs ordered: %s
- Bedside imaging: %s
- Medications: %s

[The resident's handoff]
%s

Reply with ONLY a JSON object in this exact shape:
{
  "overall": "excellent" | "good" | "needs_improvement",
  "score": 0-100,
  "strengths": ["..."],
  "missedPoints": ["..."],
  "suggestions": ["..."],
  "seniorComment": "verbal feedback, as if speaking on the phone: conversational, encouraging but constructive"
}

Scoring:
- 90-100: excellent - complete, accurate, organized, like a senior resident
- 70-89: good - mostly complete with minor omissions
- 0-69: needs_improvement - important omissions or judgment errors

The seniorComment should sound like a real phone reply; filler words are fine.`

// ActionSummary flattens what the learner did into the strings the
// grading prompt interpolates. Empty categories read as "none".
type ActionSummary struct {
	Exams       string
	Labs        string
	Imaging     string
	Medications string
}

// SummarizeActions projects a session's ledgers into an ActionSummary.
func SummarizeActions(s *session.Session) ActionSummary {
	const none = "none"

	var exams, imaging []string
	for _, e := range s.Examined {
		if e.Kind == session.ExamKindImaging {
			imaging = append(imaging, e.Item)
		} else {
			exams = append(exams, e.Item)
		}
	}

	var labs []string
	for _, order := range s.Investigations {
		labs = append(labs, order.Category)
	}

	var medications []string
	for _, m := range s.Medications {
		medications = append(medications, fmt.Sprintf("%s %g%s", m.Name, m.Dose, m.Unit))
	}

	join := func(items []string) string {
		if len(items) == 0 {
			return none
		}
		return strings.Join(items, ", ")
	}

	return ActionSummary{
		Exams:       join(exams),
		Labs:        join(labs),
		Imaging:     join(imaging),
		Medications: join(medications),
	}
}

// BuildGradingPrompt returns the full grading request for one report.
func BuildGradingPrompt(sc *scenario.Scenario, actions ActionSummary, reportText string) string {
	return fmt.Sprintf(gradingPrompt,
		sc.Diagnosis.Primary,
		strings.Join(sc.Diagnosis.KeyDifferentiators, ", "),
		actions.Exams,
		actions.Labs,
		actions.Imaging,
		actions.Medications,
		reportText,
	)
}
