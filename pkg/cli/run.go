package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

type runOptions struct {
	output  string
	outFile string
	save    bool
	strict  bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "summary", "Output format (summary, json)")
	cmd.Flags().StringVar(&o.outFile, "out", "", "Also write the JSON report to this file")
	cmd.Flags().BoolVar(&o.save, "save", false, "Persist the report to the report database")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Exit non-zero when any check fails")
}

func registerDataCmd(parent *cobra.Command, a *app) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "data <bundle-dir>",
		Short: "Run relational sanity checks over a data bundle",
		Long: `Run table, enum, foreign key and generic foreign key checks over a bundle
holding data/<table>.json, enums.yaml and relationships.yaml.`,
		Example: `  # Check a bundle and print a summary
  ekaya-sanity data ./exports/2026-10-01

  # Keep the full JSON report and persist it
  ekaya-sanity data ./exports/2026-10-01 --out report.json --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.sanityRunner(a.workerPool()).RunBundle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.finishRun(cmd, opts, report, func(w io.Writer) error { return printDataSummary(w, report) })
		},
	}
	opts.bind(cmd)
	parent.AddCommand(cmd)
}

func registerAPICmd(parent *cobra.Command, a *app) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "api <base-dir>",
		Short: "Reconcile tool implementations with their get/set API declarations",
		Long: `Compare the implementation files under each interface folder of <base-dir>
with the get/set API declarations YAML and the tools' runtime parameter schemas.`,
		Example: `  # Reconcile without running Python
  SANITY_INTROSPECTION=literal ekaya-sanity api ./envs/retail/tools -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reconciler, err := a.apiReconciler(a.workerPool())
			if err != nil {
				return err
			}
			report, err := reconciler.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.finishRun(cmd, opts, report, func(w io.Writer) error { return printAPISummary(w, report) })
		},
	}
	opts.bind(cmd)
	parent.AddCommand(cmd)
}

// finishRun writes, persists and prints a report according to opts.
func (a *app) finishRun(cmd *cobra.Command, opts *runOptions, report models.Report, summary func(io.Writer) error) error {
	if opts.outFile != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		if err := os.WriteFile(opts.outFile, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		a.logger.Info("Report written", zap.String("path", opts.outFile))
	}

	if opts.save {
		svc, closeDB, err := a.reportService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeDB()
		if _, err := svc.Save(cmd.Context(), report); err != nil {
			return err
		}
	}

	switch opts.output {
	case "json":
		if err := writeJSON(a.out, report); err != nil {
			return err
		}
	case "summary":
		if err := summary(a.out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	if opts.strict && report.FailCount() > 0 {
		return fmt.Errorf("%d of %d checks failed", report.FailCount(), report.CheckCount())
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDataSummary(w io.Writer, report *models.DataSanityReport) error {
	s := report.Summary
	_, _ = fmt.Fprintln(w, report.Title)
	_, _ = fmt.Fprintf(w, "tables: %d  checks: %d  passes: %d  fails: %d  pass rate: %s\n",
		len(report.Tables), s.TotalChecks, s.Passes, s.Fails, s.PassRate)
	_, _ = fmt.Fprintf(w, "generic relationships: %d  passes: %d  fails: %d\n",
		report.GenericFKSummary.Total, report.GenericFKSummary.Passes, report.GenericFKSummary.Fails)
	if s.Fails == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "\nSCOPE\tCHECK")
	for _, c := range report.Checks {
		if c.Result {
			continue
		}
		scope := c.Table
		if c.Relationship != "" {
			scope = c.Relationship
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", scope, c.Check)
	}
	return tw.Flush()
}

func printAPISummary(w io.Writer, report *models.APISanityReport) error {
	overall := report.Summary.Overall
	mismatched := 0
	for _, r := range report.APIs {
		if !r.ParamMatch {
			mismatched++
		}
	}
	_, _ = fmt.Fprintln(w, report.Title)
	_, _ = fmt.Fprintf(w, "interfaces: %d  apis: %d (get %d, set %d)  param mismatches: %d  duplicates: %d  skipped: %d\n",
		len(report.Interfaces), overall.TotalAPIs, overall.Get.Count, overall.Set.Count,
		mismatched, len(report.Duplicates), len(report.Skipped))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if mismatched > 0 {
		_, _ = fmt.Fprintln(tw, "\nINTERFACE\tAPI\tCLASSIFICATION")
		for _, r := range report.APIs {
			if !r.ParamMatch {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Interface, r.APIName, r.Classification)
			}
		}
	}
	for _, iface := range report.Interfaces {
		c, ok := report.InterfaceFileYAMLComparison[iface]
		if !ok || (len(c.MissingInYAML) == 0 && len(c.ExtraInYAML) == 0) {
			continue
		}
		_, _ = fmt.Fprintf(tw, "\n%s\tmissing in yaml: %v\textra in yaml: %v\n", iface, c.MissingInYAML, c.ExtraInYAML)
	}
	return tw.Flush()
}
