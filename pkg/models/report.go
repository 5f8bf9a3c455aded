package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Report types stored alongside persisted reports.
const (
	ReportTypeDataSanity = "db_sanity"
	ReportTypeAPISanity  = "api_sanity"
)

// Report statuses.
const (
	ReportStatusCompleted = "completed"
)

// TableReport holds the basic checks for one loaded table.
type TableReport struct {
	RowCount int           `json:"row_count"`
	Checks   []CheckResult `json:"checks"`
}

// GenericFKSummary counts generic (polymorphic) relationship results.
type GenericFKSummary struct {
	Total  int `json:"total"`
	Passes int `json:"passes"`
	Fails  int `json:"fails"`
}

// DataSanityReport is the assembled result of the relational sanity engine.
type DataSanityReport struct {
	ID                   uuid.UUID                `json:"id"`
	Title                string                   `json:"title"`
	Timestamp            time.Time                `json:"timestamp"`
	Tables               map[string]*TableReport  `json:"tables"`
	EnumTables           map[string][]CheckResult `json:"enum_tables"`
	Relationships        []CheckResult            `json:"relationships"`
	GenericRelationships []CheckResult            `json:"generic_relationships"`
	GenericFKSummary     GenericFKSummary         `json:"generic_fk_summary"`
	Checks               []CheckResult            `json:"checks"`
	Summary              Summary                  `json:"summary"`
}

// ReportType implements Report.
func (r *DataSanityReport) ReportType() string { return ReportTypeDataSanity }

// ReportTitle implements Report.
func (r *DataSanityReport) ReportTitle() string { return r.Title }

// FailCount implements Report.
func (r *DataSanityReport) FailCount() int { return r.Summary.Fails }

// CheckCount implements Report.
func (r *DataSanityReport) CheckCount() int { return r.Summary.TotalChecks }

// RelationshipGroups groups relationship checks by their relationship label,
// preserving first-seen order.
func (r *DataSanityReport) RelationshipGroups() []RelationshipGroup {
	var groups []RelationshipGroup
	index := make(map[string]int)
	for _, c := range r.Relationships {
		key := c.Kind + "|" + c.Relationship
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, RelationshipGroup{Relationship: c.Relationship, Kind: c.Kind})
		}
		groups[i].Checks = append(groups[i].Checks, c)
	}
	return groups
}

// RelationshipGroup is the set of checks recorded for one relationship.
type RelationshipGroup struct {
	Relationship string        `json:"relationship"`
	Kind         string        `json:"kind"`
	Checks       []CheckResult `json:"checks"`
}

// Report is implemented by every report the engines assemble.
type Report interface {
	ReportType() string
	ReportTitle() string
	FailCount() int
	CheckCount() int
}

// StoredReport is a persisted report row.
type StoredReport struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	ReportType  string          `json:"report_type"`
	Status      string          `json:"status"`
	FailCount   int             `json:"fail_count"`
	TotalChecks int             `json:"total_checks"`
	Results     json.RawMessage `json:"results"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ReportOverview summarizes persisted reports of one type.
type ReportOverview struct {
	TotalReports  int            `json:"total_reports"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	PassRate      string         `json:"pass_rate"`
	RecentReports []RecentReport `json:"recent_reports"`
}

// RecentReport is one entry of ReportOverview.RecentReports.
type RecentReport struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	FailCount   int       `json:"fail_count"`
	TotalChecks int       `json:"total_checks"`
	CreatedAt   time.Time `json:"created_at"`
}
