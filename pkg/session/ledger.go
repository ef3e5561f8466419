package session

import (
	"fmt"
	"time"
)

// ErrDuplicateOrder rejects re-ordering a leaf item that already
// appears in any ledger entry. Treated as a silent no-op by callers.
type ErrDuplicateOrder struct {
	Item string
}

func (e *ErrDuplicateOrder) Error() string {
	return fmt.Sprintf("item %q is already ordered", e.Item)
}

// IsDuplicateOrder reports whether err is a duplicate-order rejection.
func IsDuplicateOrder(err error) bool {
	_, ok := err.(*ErrDuplicateOrder)
	return ok
}

// InvestigationOrder is one ledger entry: a named category with its
// constituent item ids, ordered together and reported together.
// Label is unique per session even when the same base category is
// ordered again with new ad hoc items, so availability updates cannot
// merge two orders into one.
type InvestigationOrder struct {
	Label            string    `json:"label"`
	Category         string    `json:"category"`
	Items            []string  `json:"items"`
	OrderedAt        time.Time `json:"ordered_at"`
	ResultsAvailable bool      `json:"results_available"`
}

// ExaminedFinding records one revealed physical-exam or imaging item.
// Keyed by item id; re-examining a revealed item is a no-op.
type ExaminedFinding struct {
	Kind       string    `json:"kind"` // "physical" or "imaging"
	Category   string    `json:"category,omitempty"`
	Item       string    `json:"item"`
	Result     string    `json:"result"`
	ExaminedAt time.Time `json:"examined_at"`
}

const (
	ExamKindPhysical = "physical"
	ExamKindImaging  = "imaging"
)

// MedicationOrder is an ordered medication with the dose-safety verdict
// captured at order time. Verdicts are never recomputed retroactively.
type MedicationOrder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dose      float64   `json:"dose"`
	Unit      string    `json:"unit"`
	Frequency string    `json:"frequency,omitempty"`
	Route     string    `json:"route,omitempty"`
	OrderedAt time.Time `json:"ordered_at"`
	Warning   string    `json:"warning,omitempty"`
}

// hasOrderedItem reports whether a leaf item id appears in any entry.
func (s *Session) hasOrderedItem(item string) bool {
	for _, order := range s.Investigations {
		for _, existing := range order.Items {
			if existing == item {
				return true
			}
		}
	}
	return false
}

// uniqueOrderLabel returns category unchanged if unused, else
// category with an ordinal suffix. Labels key availability updates,
// so two orders must never share one.
func (s *Session) uniqueOrderLabel(category string) string {
	used := func(label string) bool {
		for _, order := range s.Investigations {
			if order.Label == label {
				return true
			}
		}
		return false
	}
	if !used(category) {
		return category
	}
	for n := 2; ; n++ {
		label := fmt.Sprintf("%s_%d", category, n)
		if !used(label) {
			return label
		}
	}
}
