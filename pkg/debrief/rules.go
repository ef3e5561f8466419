package debrief

import (
	"strings"

	"github.com/icusim/icu-sim/pkg/session"
)

// Key-finding discovery is a heuristic keyword-to-action mapping, kept
// as an enumerable rule table so it can be tested in isolation. A
// differentiator counts as discovered when ANY rule whose keywords it
// mentions is satisfied by the session; one matching no rule is missed.
// Matching is permissive substring matching and may over-credit
// ambiguous text.
type discoveryRule struct {
	keywords  []string
	satisfied func(*session.Session) bool
}

func examined(item string) func(*session.Session) bool {
	return func(s *session.Session) bool { return s.HasExamined(item) }
}

var discoveryRules = []discoveryRule{
	// physical exam
	{keywords: []string{"jvp"}, satisfied: examined("cardiac-jvp")},
	{keywords: []string{"cold"}, satisfied: examined("extremities-temp")},
	{keywords: []string{"warm", "bounding"}, satisfied: examined("extremities-temp")},
	{keywords: []string{"s3"}, satisfied: examined("cardiac-heart")},
	// bedside imaging: any view counts
	{keywords: []string{"echo", "lv", "ivc"}, satisfied: func(s *session.Session) bool {
		return s.ImagingDone()
	}},
	// infection markers require the specific lab category
	{keywords: []string{"procalcitonin"}, satisfied: func(s *session.Session) bool {
		return s.HasOrderedCategory("infection")
	}},
}

func findingDiscovered(finding string, s *session.Session) bool {
	lower := strings.ToLower(finding)
	for _, rule := range discoveryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) && rule.satisfied(s) {
				return true
			}
		}
	}
	return false
}

// Treatment classification for the debrief's medication review.

var volumeExpanders = []string{"saline", "ringer", "albumin"}

// isVolumeExpander matches drug names in the volume-expansion class,
// contraindicated when the correct diagnosis is a low-output state.
func isVolumeExpander(name string) bool {
	for _, v := range volumeExpanders {
		if strings.Contains(name, v) {
			return true
		}
	}
	// order forms use the short ids
	return name == "ns" || name == "lr"
}

var appropriateVasoactives = []string{"norepinephrine", "dobutamine"}

func isAppropriateVasoactive(name string) bool {
	for _, v := range appropriateVasoactives {
		if strings.Contains(name, v) {
			return true
		}
	}
	return false
}
