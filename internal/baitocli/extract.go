package baitocli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/baito-events/baitokit/internal/masterlist"
	"github.com/baito-events/baitokit/internal/payroll"
)

const defaultMasterlist = "masterlist.xlsx"

func (a *app) extractCmd() *cobra.Command {
	var (
		out        string
		month      string
		noValidate bool
		watch      bool
		debounce   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "extract <workbook|dir>...",
		Short: "Build a candidate masterlist from payment workbooks",
		Args:  minArgs(1, "at least one workbook or directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func(ctx context.Context) error {
				return a.extract(ctx, args, out, payroll.Options{Month: month, Validate: !noValidate})
			}
			if !watch {
				return run(cmd.Context())
			}
			if len(args) != 1 {
				return fmt.Errorf("%w: --watch takes exactly one inbox directory", ErrUsage)
			}
			return watchInbox(cmd.Context(), args[0], out, debounce, a.log, run)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", defaultMasterlist, "masterlist to write")
	cmd.Flags().StringVar(&month, "month", "", "month label for every record (default: from file name)")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip validation and source cross-checks")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild whenever a workbook in the inbox changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "quiet period before a watched rebuild")
	return cmd
}

func (a *app) extract(ctx context.Context, args []string, out string, opts payroll.Options) error {
	paths, err := workbookPaths(args)
	if err != nil {
		return err
	}
	abs, _ := filepath.Abs(out)
	paths = without(paths, abs)

	opts.Workers = a.cfg.Workers
	opts.Logger = a.log
	res, err := payroll.ExtractFiles(ctx, paths, opts)
	if err != nil {
		return err
	}
	for _, fe := range res.Errors {
		a.log.Warn().Str("file", fe.File).Msg(fe.Err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("no candidates found in %d workbook(s)", len(paths))
	}
	if err := ensureParentDirs(out); err != nil {
		return err
	}
	if err := masterlist.Write(out, res.Records, res.Validations); err != nil {
		return fmt.Errorf("write masterlist: %w", err)
	}
	a.log.Info().
		Int("workbooks", len(paths)).
		Int("records", len(res.Records)).
		Int("validation_issues", len(res.Validations)).
		Int("failed_workbooks", len(res.Errors)).
		Str("out", out).
		Msg("masterlist written")
	return nil
}

func without(paths []string, abs string) []string {
	out := paths[:0]
	for _, p := range paths {
		if pa, _ := filepath.Abs(p); pa == abs {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (a *app) validateCmd() *cobra.Command {
	var out, sources string
	cmd := &cobra.Command{
		Use:   "validate <masterlist.xlsx>",
		Short: "Re-run the record rules against the source workbooks and write a corrected masterlist",
		Args:  exactArgs(1, "a masterlist"),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := masterlist.Read(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = suffixed(args[0], "_validated", ".xlsx")
			}
			src := payroll.NewDirSource(sourcesDir(sources, args[0]))
			var entries []payroll.ValidationEntry
			valid := 0
			for i, r := range records {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				ok, findings, corrected := payroll.Validate(r, src)
				if ok {
					valid++
				}
				if len(findings) > 0 {
					entries = append(entries, payroll.ValidationEntry{
						File: r.SourceFile, Sheet: r.SourceSheet, Candidate: r.FullName, IC: r.ICNumber, Findings: findings,
					})
				}
				records[i] = corrected
			}
			if err := masterlist.Write(out, records, entries); err != nil {
				return fmt.Errorf("write masterlist: %w", err)
			}
			a.log.Info().Int("records", len(records)).Int("valid", valid).Int("flagged", len(entries)).Str("out", out).Msg("validation done")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "corrected masterlist (default <name>_validated.xlsx)")
	cmd.Flags().StringVar(&sources, "sources", "", "directory holding the source workbooks (default: masterlist's directory)")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "audit <masterlist.xlsx>",
		Short: "Run the data-quality rules over a masterlist and print a JSON report",
		Args:  exactArgs(1, "a masterlist"),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := masterlist.Read(args[0])
			if err != nil {
				return err
			}
			report := payroll.Audit(records)
			a.log.Info().
				Int("records", report.Records).
				Int("issues", len(report.Issues)).
				Int("high", report.BySeverity[string(payroll.SeverityHigh)]).
				Int("medium", report.BySeverity[string(payroll.SeverityMedium)]).
				Msg("audit done")
			return a.writeJSON(out, report)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "JSON report file (default stdout)")
	return cmd
}

func (a *app) logicCmd() *cobra.Command {
	var out, sources string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "logic <masterlist.xlsx>",
		Short: "Recompute each total from the source sheet's header structure",
		Args:  exactArgs(1, "a masterlist"),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := masterlist.Read(args[0])
			if err != nil {
				return err
			}
			results := payroll.CheckLogicAll(records, payroll.NewDirSource(sourcesDir(sources, args[0])))
			counts := map[payroll.LogicStatus]int{}
			passed := 0
			for _, r := range results {
				counts[r.Status]++
				if r.Status.Passed() {
					passed++
				}
			}
			ev := a.log.Info().Int("records", len(results)).Int("passed", passed)
			for status, n := range counts {
				ev = ev.Int(strings.ToLower(string(status)), n)
			}
			ev.Msg("logic check done")

			if asJSON {
				return a.writeJSON(out, results)
			}
			if out == "" {
				out = "logic_validation_report.xlsx"
			}
			return masterlist.Save(out, masterlist.LogicReport(results)...)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "report file (default logic_validation_report.xlsx, stdout with --json)")
	cmd.Flags().StringVar(&sources, "sources", "", "directory holding the source workbooks (default: masterlist's directory)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of xlsx")
	return cmd
}

func (a *app) reasonCmd() *cobra.Command {
	var out, sources string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reason <masterlist.xlsx>",
		Short: "Re-derive days and payment from every source row that mentions the IC",
		Args:  exactArgs(1, "a masterlist"),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := masterlist.Read(args[0])
			if err != nil {
				return err
			}
			results := payroll.ReasonAll(records, payroll.NewDirSource(sourcesDir(sources, args[0])))
			valid := 0
			for _, r := range results {
				if r.Status == payroll.ReasonValid {
					valid++
				}
			}
			a.log.Info().Int("records", len(results)).Int("valid", valid).Int("flagged", len(results)-valid).Msg("comprehensive validation done")

			if asJSON {
				return a.writeJSON(out, results)
			}
			if out == "" {
				out = "comprehensive_validation_report.xlsx"
			}
			return masterlist.Save(out, masterlist.ReasonReport(results)...)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "report file (default comprehensive_validation_report.xlsx, stdout with --json)")
	cmd.Flags().StringVar(&sources, "sources", "", "directory holding the source workbooks (default: masterlist's directory)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of xlsx")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge <workbook>...",
		Short: "Concatenate the first sheet of several workbooks with a source column",
		Args:  minArgs(1, "at least one workbook"),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := workbookPaths(args)
			if err != nil {
				return err
			}
			stats, err := masterlist.Merge(paths, out)
			if err != nil {
				return err
			}
			for _, e := range stats.Errors {
				a.log.Warn().Msg(e)
			}
			a.log.Info().
				Int("files", stats.Processed).
				Int("records", stats.Records).
				Str("total_payment", masterlist.FormatRM(stats.TotalPayment)).
				Int("unique_ics", stats.UniqueICs).
				Int("duplicate_ics", stats.DuplicateICs).
				Str("out", out).
				Msg("merged")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "merged_masterlist.xlsx", "merged workbook")
	return cmd
}

func (a *app) writeJSON(path string, v any) error {
	if path == "" {
		return encodeJSON(a.stdout, v)
	}
	if err := ensureParentDirs(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sourcesDir(flag, masterlistPath string) string {
	if flag != "" {
		return flag
	}
	return filepath.Dir(masterlistPath)
}

// suffixed turns "dir/name.xlsx" into "dir/name<suffix><ext>".
func suffixed(path, suffix, ext string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + suffix + ext
}
