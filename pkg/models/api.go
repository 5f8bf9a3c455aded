package models

import (
	"time"

	"github.com/google/uuid"
)

// API classifications declared in the get/set YAML.
const (
	ClassificationGet = "get"
	ClassificationSet = "set"
)

// Param is a single API parameter in the neutral comparison form.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// APIDeclaration is one interface's declared GET/SET API names (lowercased, trimmed).
type APIDeclaration struct {
	Get []string `json:"get"`
	Set []string `json:"set"`
}

// All returns the union of get and set names, de-duplicated, in declaration order.
func (d APIDeclaration) All() []string {
	seen := make(map[string]bool, len(d.Get)+len(d.Set))
	var out []string
	for _, name := range append(append([]string{}, d.Get...), d.Set...) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// ToolInfo is the runtime-declared parameter schema of one implementation file.
type ToolInfo struct {
	Interface    string  `json:"interface"`
	APIName      string  `json:"api_name"`
	Params       []Param `json:"params"`
	NameMismatch bool    `json:"name_mismatch"`
}

// ParamDiff records a parameter present on both sides with differing type or optionality.
type ParamDiff struct {
	Name   string    `json:"name"`
	Parsed ParamSide `json:"parsed"`
	Tools  ParamSide `json:"tools"`
}

// ParamSide is one side of a ParamDiff.
type ParamSide struct {
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// ParamMismatch is the reconciliation detail between the parsed signature and
// the runtime-declared schema. Missing/extra are named from the runtime side.
type ParamMismatch struct {
	NotInToolsInfo     bool        `json:"not_in_tools_info,omitempty"`
	MissingInTools     []string    `json:"missing_in_tools"`
	ExtraInTools       []string    `json:"extra_in_tools"`
	TypeOrOptionalDiff []ParamDiff `json:"type_or_optional_diff"`
}

// APIRecord is the per-declared-API reconciliation result.
type APIRecord struct {
	Interface      string        `json:"interface"`
	APIName        string        `json:"api_name"`
	Classification string        `json:"classification"`
	Params         []Param       `json:"params"`
	ParamMatch     bool          `json:"param_match"`
	ParamMismatch  ParamMismatch `json:"param_mismatch"`
}

// DuplicateAPI is an API name declared in more than one interface.
type DuplicateAPI struct {
	APIName            string   `json:"api_name"`
	InterfacesInvolved []string `json:"interfaces_involved"`
}

// InterfaceComparison reconciles on-disk files with the declaration for one interface.
type InterfaceComparison struct {
	FilesCount    int      `json:"files_count"`
	YAMLCount     int      `json:"yaml_count"`
	MissingInYAML []string `json:"missing_in_yaml"`
	ExtraInYAML   []string `json:"extra_in_yaml"`
}

// ClassificationCount is a count with its share of the total.
type ClassificationCount struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ClassificationSummary counts GET/SET APIs for an interface or overall.
type ClassificationSummary struct {
	TotalAPIs int                 `json:"total_apis"`
	Get       ClassificationCount `json:"get"`
	Set       ClassificationCount `json:"set"`
}

// APISummary holds per-interface and overall classification counts.
type APISummary struct {
	Interfaces map[string]ClassificationSummary `json:"interfaces"`
	Overall    ClassificationSummary            `json:"overall"`
}

// APIKey identifies an API by interface and name.
type APIKey struct {
	Interface string `json:"interface"`
	APIName   string `json:"api_name"`
}

// SkippedFile is an implementation file whose runtime schema could not be introspected.
type SkippedFile struct {
	Interface string `json:"interface"`
	APIName   string `json:"api_name"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
}

// APISanityReport is the assembled result of the API/YAML reconciliation engine.
type APISanityReport struct {
	ID                          uuid.UUID                      `json:"id"`
	Title                       string                         `json:"title"`
	BaseFolder                  string                         `json:"base_folder"`
	Timestamp                   time.Time                      `json:"timestamp"`
	Interfaces                  []string                       `json:"interfaces"`
	IgnoredFiles                []string                       `json:"ignored_files"`
	YAMLPath                    string                         `json:"yaml_path"`
	Summary                     APISummary                     `json:"summary"`
	Duplicates                  []DuplicateAPI                 `json:"duplicates"`
	InterfaceFileYAMLComparison map[string]InterfaceComparison `json:"interface_file_yaml_comparison"`
	ExtraAPIsInToolsInfo        []APIKey                       `json:"extra_apis_in_tools_info"`
	ToolsInfo                   []ToolInfo                     `json:"tools_info"`
	Skipped                     []SkippedFile                  `json:"skipped"`
	APIs                        []APIRecord                    `json:"apis"`
}

// ReportType implements Report.
func (r *APISanityReport) ReportType() string { return ReportTypeAPISanity }

// ReportTitle implements Report.
func (r *APISanityReport) ReportTitle() string { return r.Title }

// CheckCount implements Report: one check per declared API, per duplicate name
// and per folder/YAML discrepancy.
func (r *APISanityReport) CheckCount() int {
	n := len(r.APIs) + len(r.Duplicates)
	for _, c := range r.InterfaceFileYAMLComparison {
		n += len(c.MissingInYAML) + len(c.ExtraInYAML)
	}
	return n
}

// FailCount implements Report: parameter mismatches, duplicates and folder/YAML discrepancies.
func (r *APISanityReport) FailCount() int {
	n := len(r.Duplicates)
	for _, a := range r.APIs {
		if !a.ParamMatch {
			n++
		}
	}
	for _, c := range r.InterfaceFileYAMLComparison {
		n += len(c.MissingInYAML) + len(c.ExtraInYAML)
	}
	return n
}
