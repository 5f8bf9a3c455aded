package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

// DataReportParts are the per-stage results the assembler folds into one report.
type DataReportParts struct {
	Title        string
	Tables       Tables
	TableChecks  map[string][]models.CheckResult
	EnumChecks   map[string][]models.CheckResult
	ForeignKeys  []models.CheckResult
	GenericLinks []models.CheckResult
}

// AssembleDataReport builds the data sanity report. Relationship results hold
// foreign-key checks followed by generic ones; the flat check list holds every
// table check, then every enum check, then every relationship check, with
// tables visited in sorted name order.
func AssembleDataReport(parts DataReportParts) *models.DataSanityReport {
	now := time.Now().UTC()
	title := parts.Title
	if title == "" {
		title = "Data sanity check - " + now.Format(time.RFC3339)
	}

	report := &models.DataSanityReport{
		ID:                   uuid.New(),
		Title:                title,
		Timestamp:            now,
		Tables:               make(map[string]*models.TableReport, len(parts.Tables)),
		EnumTables:           make(map[string][]models.CheckResult, len(parts.Tables)),
		Relationships:        []models.CheckResult{},
		GenericRelationships: []models.CheckResult{},
		Checks:               []models.CheckResult{},
	}

	names := parts.Tables.Names()
	for _, name := range names {
		checks := nonNilChecks(parts.TableChecks[name])
		report.Tables[name] = &models.TableReport{RowCount: parts.Tables[name].RowCount(), Checks: checks}
		report.EnumTables[name] = nonNilChecks(parts.EnumChecks[name])
		report.Checks = append(report.Checks, checks...)
	}
	for _, name := range names {
		report.Checks = append(report.Checks, report.EnumTables[name]...)
	}

	report.Relationships = append(report.Relationships, parts.ForeignKeys...)
	report.Relationships = append(report.Relationships, parts.GenericLinks...)
	for _, c := range report.Relationships {
		if c.Kind == models.KindGeneric {
			report.GenericRelationships = append(report.GenericRelationships, c)
		}
	}
	report.Checks = append(report.Checks, report.Relationships...)

	generic := models.Summarize(report.GenericRelationships)
	report.GenericFKSummary = models.GenericFKSummary{
		Total:  generic.TotalChecks,
		Passes: generic.Passes,
		Fails:  generic.Fails,
	}
	report.Summary = models.Summarize(report.Checks)
	return report
}

func nonNilChecks(c []models.CheckResult) []models.CheckResult {
	if c == nil {
		return []models.CheckResult{}
	}
	return c
}
