package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

type reportsOptions struct {
	reportType string
	limit      int
	output     string
}

func registerReportsCmd(parent *cobra.Command, a *app) {
	opts := &reportsOptions{}
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect persisted sanity reports",
	}
	cmd.PersistentFlags().StringVarP(&opts.reportType, "type", "t", models.ReportTypeDataSanity, "Report type (db_sanity, api_sanity)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")

	cmd.AddCommand(newReportsListCmd(a, opts))
	cmd.AddCommand(newReportsSummaryCmd(a, opts))
	cmd.AddCommand(newReportsShowCmd(a))
	cmd.AddCommand(newReportsDeleteCmd(a))
	parent.AddCommand(cmd)
}

func validReportType(t string) error {
	if t != models.ReportTypeDataSanity && t != models.ReportTypeAPISanity {
		return fmt.Errorf("unknown report type %q", t)
	}
	return nil
}

func newReportsListCmd(a *app, opts *reportsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validReportType(opts.reportType); err != nil {
				return err
			}
			svc, closeDB, err := a.reportService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			reports, err := svc.List(cmd.Context(), opts.reportType, opts.limit)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				for _, r := range reports {
					r.Results = nil
				}
				return writeJSON(a.out, reports)
			}
			if len(reports) == 0 {
				_, _ = fmt.Fprintln(a.out, "No reports found.")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tCREATED\tFAILS\tCHECKS\tTITLE")
			for _, r := range reports {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.FailCount, r.TotalChecks, r.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of reports (0 for all)")
	return cmd
}

func newReportsSummaryCmd(a *app, opts *reportsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show pass rate and recent runs for one report type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validReportType(opts.reportType); err != nil {
				return err
			}
			svc, closeDB, err := a.reportService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			overview, err := svc.Summary(cmd.Context(), opts.reportType)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(a.out, overview)
			}
			_, _ = fmt.Fprintf(a.out, "reports: %d  passed: %d  failed: %d  pass rate: %s\n",
				overview.TotalReports, overview.Passed, overview.Failed, overview.PassRate)
			return nil
		},
	}
}

func newReportsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print one persisted report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id %q: %w", args[0], err)
			}
			svc, closeDB, err := a.reportService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(a.out, report)
		},
	}
}

func newReportsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <report-id>",
		Short: "Delete a persisted report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid report id %q: %w", args[0], err)
			}
			svc, closeDB, err := a.reportService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := svc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "Deleted report %s\n", id)
			return nil
		},
	}
}
