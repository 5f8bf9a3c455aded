// Package tools provides the MCP tools exposing the sanity engines.
package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
	"github.com/ekaya-inc/ekaya-sanity/pkg/services"
)

const (
	defaultReportListLimit = 20
	maxReportListLimit     = 100
)

// SanityToolDeps contains dependencies for the sanity tools.
type SanityToolDeps struct {
	Runner     services.SanityRunner
	Reconciler services.APIReconciler
	// Reports is nil when persistence is disabled; the report tools then
	// answer with a persistence_disabled error result.
	Reports services.ReportService
	Logger  *zap.Logger
}

// runResult wraps a freshly assembled report.
type runResult struct {
	Report        models.Report `json:"report"`
	SavedReportID *uuid.UUID    `json:"saved_report_id,omitempty"`
}

// RegisterSanityTools registers the run and report tools.
func RegisterSanityTools(s *server.MCPServer, deps *SanityToolDeps) {
	registerRunDataSanityTool(s, deps)
	registerRunAPISanityTool(s, deps)
	registerReportSummaryTool(s, deps)
	registerListReportsTool(s, deps)
	registerGetReportTool(s, deps)
}

func registerRunDataSanityTool(s *server.MCPServer, deps *SanityToolDeps) {
	tool := mcp.NewTool(
		"run_data_sanity",
		mcp.WithDescription(
			"Runs relational sanity checks over a bundle directory holding data/<table>.json, "+
				"enums.yaml and relationships.yaml. Returns table, enum, foreign key and "+
				"generic foreign key check results with a pass/fail summary.",
		),
		mcp.WithString(
			"bundle_dir",
			mcp.Required(),
			mcp.Description("Path of the bundle directory (a single wrapping folder is descended into)"),
		),
		mcp.WithBoolean(
			"save",
			mcp.Description("Persist the report (default false)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dir, err := req.RequireString("bundle_dir")
		if err != nil {
			return nil, err
		}
		dir = trimString(dir)
		if dir == "" {
			return NewErrorResult("invalid_parameters", "bundle_dir parameter cannot be empty"), nil
		}

		report, err := deps.Runner.RunBundle(ctx, dir)
		if err != nil {
			if result := AsUserErrorResult(err); result != nil {
				deps.Logger.Warn("Data sanity run rejected", zap.String("bundle_dir", dir), zap.Error(err))
				return result, nil
			}
			return nil, fmt.Errorf("data sanity run failed: %w", err)
		}
		return finishRun(ctx, deps, report, optionalBool(req, "save", false))
	})
}

func registerRunAPISanityTool(s *server.MCPServer, deps *SanityToolDeps) {
	tool := mcp.NewTool(
		"run_api_sanity",
		mcp.WithDescription(
			"Reconciles interface implementation files under base_dir against the get/set "+
				"API declarations YAML and the tools' runtime parameter schemas. Returns "+
				"per-API records, duplicates and file/YAML differences.",
		),
		mcp.WithString(
			"base_dir",
			mcp.Required(),
			mcp.Description("Path of the folder containing interface_N directories"),
		),
		mcp.WithBoolean(
			"save",
			mcp.Description("Persist the report (default false)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dir, err := req.RequireString("base_dir")
		if err != nil {
			return nil, err
		}
		dir = trimString(dir)
		if dir == "" {
			return NewErrorResult("invalid_parameters", "base_dir parameter cannot be empty"), nil
		}

		report, err := deps.Reconciler.Reconcile(ctx, dir)
		if err != nil {
			if result := AsUserErrorResult(err); result != nil {
				deps.Logger.Warn("API sanity run rejected", zap.String("base_dir", dir), zap.Error(err))
				return result, nil
			}
			return nil, fmt.Errorf("api sanity run failed: %w", err)
		}
		return finishRun(ctx, deps, report, optionalBool(req, "save", false))
	})
}

func finishRun(ctx context.Context, deps *SanityToolDeps, report models.Report, save bool) (*mcp.CallToolResult, error) {
	result := runResult{Report: report}
	if save {
		if deps.Reports == nil {
			return persistenceDisabled(), nil
		}
		stored, err := deps.Reports.Save(ctx, report)
		if err != nil {
			return nil, err
		}
		result.SavedReportID = &stored.ID
	}
	return jsonResult(result)
}

func registerReportSummaryTool(s *server.MCPServer, deps *SanityToolDeps) {
	tool := mcp.NewTool(
		"sanity_report_summary",
		mcp.WithDescription(
			"Summarizes persisted reports of one type: totals, pass rate and the 10 most recent runs.",
		),
		mcp.WithString(
			"report_type",
			mcp.Description("Report type: db_sanity (default) or api_sanity"),
			mcp.Enum(models.ReportTypeDataSanity, models.ReportTypeAPISanity),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Reports == nil {
			return persistenceDisabled(), nil
		}
		reportType, bad := reportTypeArg(req)
		if bad != nil {
			return bad, nil
		}

		overview, err := deps.Reports.Summary(ctx, reportType)
		if err != nil {
			return nil, err
		}
		return jsonResult(overview)
	})
}

func registerListReportsTool(s *server.MCPServer, deps *SanityToolDeps) {
	tool := mcp.NewTool(
		"list_sanity_reports",
		mcp.WithDescription("Lists persisted reports of one type, newest first, without their results."),
		mcp.WithString(
			"report_type",
			mcp.Description("Report type: db_sanity (default) or api_sanity"),
			mcp.Enum(models.ReportTypeDataSanity, models.ReportTypeAPISanity),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of reports to return (default 20, max 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Reports == nil {
			return persistenceDisabled(), nil
		}
		reportType, bad := reportTypeArg(req)
		if bad != nil {
			return bad, nil
		}
		limit := optionalInt(req, "limit", defaultReportListLimit)
		if limit <= 0 || limit > maxReportListLimit {
			limit = maxReportListLimit
		}

		reports, err := deps.Reports.List(ctx, reportType, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range reports {
			r.Results = nil
		}
		return jsonResult(map[string]any{"reports": reports, "count": len(reports)})
	})
}

func registerGetReportTool(s *server.MCPServer, deps *SanityToolDeps) {
	tool := mcp.NewTool(
		"get_sanity_report",
		mcp.WithDescription("Returns one persisted report with its full results."),
		mcp.WithString(
			"report_id",
			mcp.Required(),
			mcp.Description("Report UUID"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Reports == nil {
			return persistenceDisabled(), nil
		}
		raw, err := req.RequireString("report_id")
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(trimString(raw))
		if err != nil {
			return NewErrorResult("invalid_parameters", fmt.Sprintf("report_id %q is not a UUID", raw)), nil
		}

		report, err := deps.Reports.Get(ctx, id)
		if err != nil {
			if result := AsUserErrorResult(err); result != nil {
				return result, nil
			}
			return nil, err
		}
		return jsonResult(report)
	})
}

func reportTypeArg(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	reportType := trimString(req.GetString("report_type", models.ReportTypeDataSanity))
	switch reportType {
	case "":
		return models.ReportTypeDataSanity, nil
	case models.ReportTypeDataSanity, models.ReportTypeAPISanity:
		return reportType, nil
	}
	return "", NewErrorResultWithDetails(
		"invalid_parameters",
		fmt.Sprintf("unknown report_type %q", reportType),
		map[string]any{"valid_report_types": []string{models.ReportTypeDataSanity, models.ReportTypeAPISanity}},
	)
}

func persistenceDisabled() *mcp.CallToolResult {
	return NewErrorResult("persistence_disabled", "no report database is configured; set DATABASE_URL or PGHOST")
}
