package baitocli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baito-events/baitokit/internal/apiapp"
	"github.com/baito-events/baitokit/internal/config"
	"github.com/baito-events/baitokit/internal/envutil"
	"github.com/baito-events/baitokit/internal/masterlist"
	"github.com/baito-events/baitokit/internal/payroll"
	"github.com/baito-events/baitokit/internal/registry"
	"github.com/baito-events/baitokit/internal/security"
	"github.com/baito-events/baitokit/internal/uxreview"
)

func (a *app) setupCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Generate an API token and write its hash to the env file",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := security.GenerateToken()
			if err != nil {
				return err
			}
			hash, err := security.HashToken(token)
			if err != nil {
				return err
			}
			values := map[string]string{
				config.TokenHashKey:          hash,
				config.EnvPrefix + "API_ADDR": a.cfg.API.Addr,
				config.EnvPrefix + "REGISTRY": a.cfg.Registry,
			}
			if err := envutil.WriteDotEnv(a.envFile, values, force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", a.envFile)
			fmt.Fprintf(a.stdout, "api token (shown once): %s\n", token)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing env file")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var fromMasterlist bool
	cmd := &cobra.Command{
		Use:   "import <workbook|dir>...",
		Short: "Upsert the candidates found in payment workbooks into the registry",
		Args:  minArgs(1, "at least one workbook or directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var records []payroll.Record
			if fromMasterlist {
				for _, p := range args {
					rs, err := masterlist.Read(p)
					if err != nil {
						return err
					}
					records = append(records, rs...)
				}
			} else {
				paths, err := workbookPaths(args)
				if err != nil {
					return err
				}
				res, err := payroll.ExtractFiles(ctx, paths, payroll.Options{Workers: a.cfg.Workers, Logger: a.log})
				if err != nil {
					return err
				}
				for _, fe := range res.Errors {
					a.log.Warn().Str("file", fe.File).Msg(fe.Err)
				}
				records = res.Records
			}

			cands := registry.CandidatesFromRecords(records)
			if len(cands) == 0 {
				return errors.New("no candidates with a usable IC found")
			}
			if err := ensureParentDirs(a.cfg.Registry); err != nil {
				return err
			}
			store, err := registry.Open(a.cfg.Registry)
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Import(ctx, importSource(args), cands)
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				a.log.Warn().Msg(e)
			}
			a.log.Info().
				Str("batch", res.BatchID).
				Int("candidates", res.Records).
				Int("inserted", res.Inserted).
				Int("updated", res.Updated).
				Int("failed", res.Failed).
				Str("registry", a.cfg.Registry).
				Msg("import done")
			return a.writeJSON("", res)
		},
	}
	cmd.Flags().String("registry", "baito.db", "registry database")
	cmd.Flags().BoolVar(&fromMasterlist, "masterlist", false, "arguments are masterlists written by extract")
	return cmd
}

func importSource(args []string) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = filepath.Base(a)
	}
	return strings.Join(names, ", ")
}

func (a *app) uxreviewCmd() *cobra.Command {
	var outDir, controlURL string
	cmd := &cobra.Command{
		Use:   "uxreview <scenario.yaml>",
		Short: "Walk the web app through a scripted scenario and write a screenshot report",
		Args:  exactArgs(1, "a scenario file"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := uxreview.Load(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			ux := a.cfg.UXReview
			browser, err := uxreview.Launch(cmd.Context(), sc.Viewport, uxreview.BrowserOptions{
				Headless:   ux.Headless,
				Bin:        ux.Chrome,
				ControlURL: controlURL,
				Timeout:    a.cfg.UXReviewTimeout(),
			})
			if err != nil {
				return err
			}
			defer browser.Close()

			rep, err := uxreview.Run(cmd.Context(), sc, browser, outDir, a.log)
			if rep != nil {
				a.log.Info().
					Int("steps", len(rep.Steps)).
					Int("screenshots", len(rep.Screenshots)).
					Int("console_errors", len(rep.ConsoleErrors)).
					Str("report", filepath.Join(outDir, "report.md")).
					Msg("ux review finished")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "ux-review", "directory for screenshots and report.md")
	cmd.Flags().StringVar(&controlURL, "control-url", "", "DevTools URL of a running browser")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction API",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := apiapp.Run(cmd.Context(), apiapp.Config{
				Addr:           a.cfg.API.Addr,
				TokenHash:      a.cfg.API.TokenHash,
				MaxUploadBytes: a.cfg.MaxUploadBytes(),
				Logger:         a.log,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}
