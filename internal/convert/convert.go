// Package convert splits workbooks into one CSV file per sheet.
package convert

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

var ErrNotFound = errors.New("workbook not found")

// SheetFile describes one converted sheet.
type SheetFile struct {
	Sheet string `json:"sheet"`
	Path  string `json:"path,omitempty"`
	Rows  int    `json:"rows"`
	Cols  int    `json:"cols"`
	Err   string `json:"error,omitempty"`
}

// Result lists converted sheets and the ones that failed.
type Result struct {
	Files  []SheetFile `json:"files"`
	Failed []SheetFile `json:"failed,omitempty"`
}

// Paths returns the CSV files that were written.
func (r Result) Paths() []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Path
	}
	return out
}

// FileName is the CSV name for a sheet: "<base>_<sheet>.csv".
func FileName(workbook, sheetName string) string {
	base := strings.TrimSuffix(filepath.Base(workbook), filepath.Ext(workbook))
	return base + "_" + clean.FileName(sheetName) + ".csv"
}

// File converts the workbook at path. outDir defaults to the workbook's
// directory and is created when missing. A sheet that fails to write is
// reported in Result.Failed and the rest carry on.
func File(path, outDir string, log zerolog.Logger) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Result{}, err
	}
	if !sheet.Supported(path) {
		return Result{}, fmt.Errorf("%w: %s", sheet.ErrUnsupportedFormat, filepath.Ext(path))
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	wb, err := sheet.Open(path)
	if err != nil {
		return Result{}, err
	}
	log.Info().Str("file", wb.Name).Int("sheets", len(wb.Sheets)).Msg("converting workbook")

	var res Result
	for _, s := range wb.Sheets {
		out := filepath.Join(outDir, FileName(wb.Name, s.Name))
		sf := SheetFile{Sheet: s.Name, Path: out, Rows: len(s.Rows), Cols: s.Width()}
		if err := writeFile(out, s); err != nil {
			log.Warn().Err(err).Str("sheet", s.Name).Msg("sheet not converted")
			sf.Path = ""
			sf.Err = err.Error()
			res.Failed = append(res.Failed, sf)
			continue
		}
		log.Debug().Str("sheet", s.Name).Int("rows", sf.Rows).Int("cols", sf.Cols).Str("csv", out).Msg("sheet converted")
		res.Files = append(res.Files, sf)
	}
	return res, nil
}

func writeFile(path string, s *sheet.Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes a sheet as CSV. Rows are padded to the sheet width so
// every record has the same number of fields.
func Write(w io.Writer, s *sheet.Sheet) error {
	width := s.Width()
	cw := csv.NewWriter(w)
	for _, row := range s.Rows {
		record := make([]string, width)
		copy(record, row)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Zip writes every sheet of wb as a CSV entry of a zip archive.
func Zip(w io.Writer, wb *sheet.Workbook) error {
	zw := zip.NewWriter(w)
	for _, s := range wb.Sheets {
		entry, err := zw.Create(FileName(wb.Name, s.Name))
		if err != nil {
			return err
		}
		if err := Write(entry, s); err != nil {
			return fmt.Errorf("sheet %q: %w", s.Name, err)
		}
	}
	return zw.Close()
}
