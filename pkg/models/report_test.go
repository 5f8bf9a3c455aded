package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		checks []CheckResult
		want   Summary
	}{
		{"empty", nil, Summary{PassRate: "0%"}},
		{"all pass", []CheckResult{{Result: true}, {Result: true}}, Summary{TotalChecks: 2, Passes: 2, PassRate: "100.0%"}},
		{"mixed", []CheckResult{{Result: true}, {Result: true}, {Result: false}}, Summary{TotalChecks: 3, Passes: 2, Fails: 1, PassRate: "66.7%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.checks))
		})
	}
}

func TestRelationshipGroups(t *testing.T) {
	report := &DataSanityReport{Relationships: []CheckResult{
		{Check: "a", Relationship: "funds → investments", Kind: KindForeignKey},
		{Check: "b", Relationship: "comments.target_id", Kind: KindGeneric},
		{Check: "c", Relationship: "funds → investments", Kind: KindForeignKey},
	}}

	groups := report.RelationshipGroups()
	assert.Len(t, groups, 2)
	assert.Equal(t, "funds → investments", groups[0].Relationship)
	assert.Len(t, groups[0].Checks, 2)
	assert.Equal(t, KindGeneric, groups[1].Kind)
}

func TestAPISanityReport_Counts(t *testing.T) {
	report := &APISanityReport{
		APIs:       []APIRecord{{ParamMatch: true}, {ParamMatch: false}, {ParamMatch: true}},
		Duplicates: []DuplicateAPI{{APIName: "list_items"}},
		InterfaceFileYAMLComparison: map[string]InterfaceComparison{
			"interface_1": {MissingInYAML: []string{"orphan"}, ExtraInYAML: []string{"ghost"}},
		},
	}
	assert.Equal(t, 6, report.CheckCount())
	assert.Equal(t, 4, report.FailCount())
	assert.Equal(t, ReportTypeAPISanity, report.ReportType())
}

func TestAPIDeclaration_All(t *testing.T) {
	d := APIDeclaration{Get: []string{"get_user", "list_items"}, Set: []string{"update_user", "get_user"}}
	assert.Equal(t, []string{"get_user", "list_items", "update_user"}, d.All())
}
