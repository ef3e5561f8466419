// Package prompts builds the instruction text sent to the NLG
// collaborator for the two contracts it serves: the in-character nurse
// chat and the senior-physician handoff grading.
package prompts

import (
	"fmt"
	"strings"

	"github.com/icusim/icu-sim/pkg/scenario"
)

// NurseSystemPrompt frames the nurse persona. The case background is
// appended per request by BuildNurseSystem.
const NurseSystemPrompt = `You are an ICU nurse caring for a patient. Your role:

1. Answer the resident's (the learner's) questions about the patient's history.
2. Ground every answer in the provided history context; never invent information that is not there.
3. Keep answers brief and professional, using common clinical phrasing.
4. If you don't know the answer, say so, e.g. "I'm not sure, I'd have to check the chart" or "I didn't notice that."
5. Be warm but professional, like a real ICU nurse.

Hard rules:
- Only answer questions related to the patient's history.
- Do not give medical advice or suggest diagnoses.
- If the learner asks about something unrelated to the patient, gently steer the conversation back to patient care.
- Answer the question and stop. Never append prompts, offers, or questions such as "Anything else?" or "Do you want me to...".
- Do not volunteer extra information; answer only what was asked.`

// BuildNurseSystem returns the full system prompt for a chat turn:
// the persona plus the scenario's nurse-facing background.
func BuildNurseSystem(hc scenario.HistoryContext) string {
	var b strings.Builder
	b.WriteString(NurseSystemPrompt)
	b.WriteString("\n\nPatient background:\n")
	b.WriteString(hc.Description)
	if len(hc.KeyPoints) > 0 {
		b.WriteString("\n\nKey history points:\n")
		for _, p := range hc.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}
