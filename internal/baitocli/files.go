package baitocli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/baito-events/baitokit/internal/convert"
	"github.com/baito-events/baitokit/internal/pack"
	"github.com/baito-events/baitokit/internal/render"
)

func (a *app) convertCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "convert <workbook|dir>...",
		Short: "Write one CSV per sheet",
		Args:  minArgs(1, "at least one workbook or directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := workbookPaths(args)
			if err != nil {
				return err
			}
			written, failed := 0, 0
			for _, p := range paths {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				res, err := convert.File(p, outDir, a.log)
				if err != nil {
					a.log.Warn().Err(err).Str("file", filepath.Base(p)).Msg("workbook not converted")
					failed++
					continue
				}
				written += len(res.Files)
				failed += len(res.Failed)
			}
			a.log.Info().Int("workbooks", len(paths)).Int("csv_files", written).Int("failed", failed).Msg("conversion done")
			if written == 0 {
				return fmt.Errorf("no sheets converted")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for CSV files (default: next to each workbook)")
	return cmd
}

func (a *app) renderCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "render <workbook|dir>...",
		Short: "Draw every sheet as a PNG for review",
		Args:  minArgs(1, "at least one workbook or directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := workbookPaths(args)
			if err != nil {
				return err
			}
			rc := a.cfg.Render
			stats, err := render.Files(cmd.Context(), paths, outDir, render.Options{
				CellWidth:  rc.CellWidth,
				CellHeight: rc.CellHeight,
				MaxWidth:   rc.MaxWidth,
				MaxHeight:  rc.MaxHeight,
				Scale:      rc.Scale,
			}, a.log)
			if err != nil {
				return err
			}
			a.log.Info().Int("workbooks", stats.Files).Int("images", stats.Sheets).Int("errors", len(stats.Errors)).Str("out_dir", outDir).Msg("render done")
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "sheet_images", "directory for PNG files")
	cmd.Flags().Float64("scale", 0, "resize factor for finished images")
	return cmd
}

func (a *app) packCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Bundle a project directory into a .zip or .tar.xz for deployment",
		Args:  exactArgs(1, "a directory"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := pack.FormatFor(out); err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			m, err := pack.Dir(args[0], out, a.cfg.Pack.Excludes)
			if err != nil {
				return err
			}
			a.log.Info().Str("archive", m.Archive).Str("format", string(m.Format)).Int("entries", len(m.Entries)).Int64("bytes", m.Bytes).Msg("packed")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "deploy.zip", "archive to write (.zip, .tar.xz or .txz)")
	cmd.Flags().StringSlice("exclude", nil, "extra glob patterns to leave out")
	return cmd
}
