// Package baitocli is the baito command line.
package baitocli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baito-events/baitokit/internal/config"
	"github.com/baito-events/baitokit/internal/logging"
	"github.com/baito-events/baitokit/internal/sheet"
)

// ErrUsage marks errors caused by how the command was invoked. main exits
// with status 2 for them.
var ErrUsage = errors.New("usage")

type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	envFile    string

	cfg config.Config
	log zerolog.Logger
}

// Execute runs the command line with args (without the program name).
func Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return ExecuteContext(ctx, args, os.Stdout, os.Stderr)
}

// ExecuteContext is Execute with explicit context and output streams.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "baito",
		Short:         "Payroll workbook tools for promoter staffing",
		Long:          "baito extracts candidate masterlists from hand-made payment workbooks, checks them\nagainst their sources and keeps the candidate registry up to date.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("%w: a command is required", ErrUsage)
		},
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "TOML config file (default "+config.DefaultFile+" when present)")
	pf.StringVar(&a.envFile, "env-file", config.DefaultDotEnv, "dotenv file loaded before BAITO_* variables")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.Int("workers", 4, "workbooks processed concurrently")

	root.AddCommand(
		a.setupCmd(),
		a.convertCmd(),
		a.extractCmd(),
		a.validateCmd(),
		a.auditCmd(),
		a.logicCmd(),
		a.reasonCmd(),
		a.mergeCmd(),
		a.renderCmd(),
		a.packCmd(),
		a.importCmd(),
		a.uxreviewCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration and builds the logger before any subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Sources{File: a.configFile, DotEnv: a.envFile})
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	log, err := logging.New(a.stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

// minArgs is cobra.MinimumNArgs reporting a usage error.
func minArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s requires %s", ErrUsage, cmd.CommandPath(), what)
		}
		return nil
	}
}

func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s requires %s", ErrUsage, cmd.CommandPath(), what)
		}
		return nil
	}
}

// workbookPaths expands directories to the workbooks directly inside them.
// Excel lock files ("~$...") are skipped.
func workbookPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !sheet.Supported(arg) {
				return nil, fmt.Errorf("%s: %w", arg, sheet.ErrUnsupportedFormat)
			}
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.HasPrefix(name, "~$") || !sheet.Supported(name) {
				continue
			}
			found = append(found, filepath.Join(arg, name))
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no workbooks found", ErrUsage)
	}
	return out, nil
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
