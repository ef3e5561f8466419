package scenario

import (
	"strconv"
	"strings"
)

// Lab result values come in two flavors: numeric analytes and
// qualitative string results (cultures, urinalysis). LabValue models
// both so callers can render either without type switches.
type LabValue struct {
	Numeric float64
	Text    string
	IsText  bool
	Found   bool
}

// PendingText is shown for qualitative items that the scenario has
// no result for yet.
const PendingText = "Pending..."

// Case files write item ids with dashes (blood-culture); the
// registries below are keyed canonically with underscores. normalizeItem
// maps either spelling to the registry key.
func normalizeItem(item string) string {
	return strings.ReplaceAll(item, "-", "_")
}

var qualitativeItems = map[string]bool{
	"blood_culture":  true,
	"urine_culture":  true,
	"sputum_culture": true,
	"wound_culture":  true,
	"ua_routine":     true,
	"ua_sediment":    true,
}

// IsCultureItem reports whether the item id names a culture specimen.
// Cultures have a longer turnaround and non-numeric results.
func IsCultureItem(item string) bool {
	return strings.Contains(item, "culture")
}

// IsQualitativeItem reports whether the item resolves to text rather
// than a number.
func IsQualitativeItem(item string) bool {
	return qualitativeItems[normalizeItem(item)]
}

// LabValue resolves an item id against the panel. The matching category
// is searched first, then all categories, so ad hoc items bundled under
// a suffixed record label (e.g. "cardiac_2") still resolve. The raw
// value's type decides numeric vs text. Known qualitative items absent
// from the panel read as pending; anything else absent returns
// Found=false and the caller renders a neutral placeholder.
func (p LabPanel) LabValue(category, item string) LabValue {
	// Record labels may carry an ordinal suffix to keep them unique
	// per order; strip it before the category lookup.
	base, _, _ := strings.Cut(category, "_")

	if items, ok := p[base]; ok {
		if raw, ok := items[item]; ok {
			return fromRaw(raw)
		}
	}
	for _, items := range p {
		if raw, ok := items[item]; ok {
			return fromRaw(raw)
		}
	}

	if IsQualitativeItem(item) {
		return LabValue{Text: PendingText, IsText: true, Found: true}
	}
	return LabValue{}
}

func fromRaw(v any) LabValue {
	if s, ok := v.(string); ok {
		return LabValue{Text: s, IsText: true, Found: true}
	}
	if n, ok := asNumber(v); ok {
		return LabValue{Numeric: n, Found: true}
	}
	return LabValue{}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Result is one resolved lab line, ready for display.
type Result struct {
	Item  string `json:"item"`
	Value string `json:"value"`
	Flag  string `json:"flag,omitempty"` // "high", "low", or empty
}

// Results resolves an ordered item list against the panel, rendering
// every item the way a report would print it.
func (p LabPanel) Results(category string, items []string) []Result {
	out := make([]Result, 0, len(items))
	for _, item := range items {
		v := p.LabValue(category, item)
		r := Result{Item: item}
		switch {
		case !v.Found:
			r.Value = "Not available"
		case v.IsText:
			r.Value = v.Text
		default:
			r.Value = strconv.FormatFloat(v.Numeric, 'f', -1, 64)
			r.Flag = AbnormalDirection(item, v.Numeric)
		}
		out = append(out, r)
	}
	return out
}

// normalRanges holds adult reference intervals for the analytes the
// case files ship. Display-only; never used by gameplay logic.
var normalRanges = map[string]struct{ Min, Max float64 }{
	"sodium":        {135, 145},
	"potassium":     {3.5, 5.0},
	"creatinine":    {0.6, 1.2},
	"urea":          {7, 20},
	"glucose":       {70, 140},
	"lactate":       {0.5, 2.2},
	"hemoglobin":    {12.0, 17.0},
	"wbc":           {4.0, 11.0},
	"platelets":     {150, 400},
	"troponin":      {0, 0.04},
	"bnp":           {0, 100},
	"procalcitonin": {0, 0.5},
	"crp":           {0, 5},
	"ph":            {7.35, 7.45},
	"pco2":          {35, 45},
	"po2":           {80, 100},
	"hco3":          {22, 26},
	"be":            {-2, 2},
	"sao2":          {95, 100},
	"pt_inr":        {0.8, 1.2},
	"aptt":          {25, 35},
	"d_dimer":       {0, 0.5},
}

// AbnormalDirection reports whether a numeric result is outside its
// reference interval and in which direction ("high", "low", or "").
// Items without a known interval are never flagged.
func AbnormalDirection(item string, value float64) string {
	r, ok := normalRanges[normalizeItem(item)]
	if !ok {
		return ""
	}
	if value > r.Max {
		return "high"
	}
	if value < r.Min {
		return "low"
	}
	return ""
}
