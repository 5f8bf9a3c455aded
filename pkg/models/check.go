package models

import "fmt"

// Relationship kinds distinguish foreign-key results from generic (polymorphic) ones.
const (
	KindForeignKey = "foreign_key"
	KindGeneric    = "generic"
)

// Cardinality types accepted in relationship descriptors.
const (
	Cardinality1To1 = "1:1"
	Cardinality1ToN = "1:N"
	CardinalityMToN = "M:N"
)

// CheckResult is a single pass/fail record. Results are appended to a report
// and never mutated afterwards.
type CheckResult struct {
	Check        string         `json:"check"`
	Result       bool           `json:"result"`
	Table        string         `json:"table,omitempty"`
	Relationship string         `json:"relationship,omitempty"`
	Kind         string         `json:"kind,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// Summary is the aggregate pass/fail fold over a list of checks.
type Summary struct {
	TotalChecks int    `json:"total_checks"`
	Passes      int    `json:"passes"`
	Fails       int    `json:"fails"`
	PassRate    string `json:"pass_rate"`
}

// Summarize folds checks into a Summary. An empty list has a pass rate of "0%".
func Summarize(checks []CheckResult) Summary {
	s := Summary{TotalChecks: len(checks)}
	for _, c := range checks {
		if c.Result {
			s.Passes++
		} else {
			s.Fails++
		}
	}
	s.PassRate = PassRate(s.Passes, s.TotalChecks)
	return s
}

// PassRate formats passed/total as a percentage with one decimal.
func PassRate(passed, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(passed)/float64(total)*100)
}
