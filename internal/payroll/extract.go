package payroll

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

const maxRosterEntries = 5

// Options tunes an extraction run.
type Options struct {
	// Month overrides the month detected from the file path.
	Month string
	// Validate runs the record rules against the source workbook and
	// keeps the corrected record.
	Validate bool
	// Workers bounds concurrent workbooks in ExtractFiles. Zero means 4.
	Workers int
	Logger  zerolog.Logger
}

// Result is the output of an extraction run.
type Result struct {
	Records     []Record          `json:"records"`
	Validations []ValidationEntry `json:"validations,omitempty"`
	Errors      []FileError       `json:"errors,omitempty"`
}

// FileError records a workbook that could not be read.
type FileError struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

func (e FileError) Error() string {
	return e.File + ": " + e.Err
}

// ExtractFiles opens and extracts every workbook concurrently. A workbook
// that fails to open is reported in Result.Errors and does not stop the
// others. Records come back sorted.
func ExtractFiles(ctx context.Context, paths []string, opts Options) (Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	results := make([]Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			wb, err := sheet.Open(path)
			if err != nil {
				opts.Logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("skipping workbook")
				results[i].Errors = append(results[i].Errors, FileError{File: filepath.Base(path), Err: err.Error()})
				return nil
			}
			fileOpts := opts
			if fileOpts.Month == "" {
				fileOpts.Month = clean.Month(path)
			}
			res, err := ExtractWorkbook(gctx, wb, fileOpts)
			if err != nil {
				return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var merged Result
	for _, r := range results {
		merged.Records = append(merged.Records, r.Records...)
		merged.Validations = append(merged.Validations, r.Validations...)
		merged.Errors = append(merged.Errors, r.Errors...)
	}
	SortRecords(merged.Records)
	return merged, nil
}

// ExtractWorkbook extracts every sheet of an opened workbook.
func ExtractWorkbook(ctx context.Context, wb *sheet.Workbook, opts Options) (Result, error) {
	month := opts.Month
	if month == "" {
		month = clean.Month(wb.Name)
	}
	log := opts.Logger.With().Str("file", wb.Name).Logger()
	log.Info().Int("sheets", len(wb.Sheets)).Str("month", month).Msg("processing workbook")

	var res Result
	src := WorkbookSource{Workbook: wb}
	for _, s := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		records := ExtractSheet(s, Record{Month: month, SourceFile: wb.Name})
		if len(records) == 0 {
			log.Debug().Str("sheet", s.Name).Msg("no candidates found")
			continue
		}
		for _, rec := range records {
			if opts.Validate {
				_, findings, corrected := Validate(rec, src)
				if len(findings) > 0 {
					res.Validations = append(res.Validations, newValidationEntry(rec, findings))
				}
				rec = corrected
			}
			res.Records = append(res.Records, rec)
		}
	}
	log.Info().Int("records", len(res.Records)).Int("validation_issues", len(res.Validations)).Msg("extracted")
	return res, nil
}

// ExtractSheet returns one record per candidate found in the sheet. base
// supplies the month and source file; everything else is read from s.
func ExtractSheet(s *sheet.Sheet, base Record) []Record {
	base.SourceSheet = s.Name
	base.ProjectName = s.Name
	base.ProjectMetadata = ScanMetadata(s.Rows)

	var out []Record
	for _, sec := range Sections(s.Rows) {
		if !sec.Columns.Usable() {
			continue
		}
		out = append(out, extractSection(s.Rows, sec, base)...)
	}
	return out
}

func extractSection(rows [][]string, sec Section, base Record) []Record {
	cols := sec.Columns
	var (
		candidates []*Record
		current    *Record
		prev       []string
	)
	for i := sec.Start; i < sec.End; i++ {
		row := rows[i]
		if isSummaryRow(row, cols) {
			current = nil
			prev = row
			continue
		}
		if !isContinuation(row, prev, cols) {
			current = nil
			if rec, ok := startCandidate(row, cols, base, i); ok {
				current = &rec
				candidates = append(candidates, current)
			}
		}
		if current != nil {
			aggregate(current, row, cols)
		}
		prev = row
	}

	out := make([]Record, 0, len(candidates))
	for _, c := range candidates {
		c.roundAmounts()
		c.settleTotal()
		if len(c.RosterInfo) > maxRosterEntries {
			c.RosterInfo = c.RosterInfo[:maxRosterEntries]
		}
		out = append(out, *c)
	}
	return out
}

// isContinuation reports whether row belongs to the candidate on prev: it
// either leaves both name and IC blank or repeats the previous IC.
func isContinuation(row, prev []string, cols Columns) bool {
	if prev == nil || cols.IC < 0 {
		return false
	}
	ic := clean.ICNumber(sheet.Cell(row, cols.IC))
	if ic == "" {
		return clean.Name(sheet.Cell(row, cols.Name)) == ""
	}
	return ic == clean.ICNumber(sheet.Cell(prev, cols.IC))
}

var summaryLabels = []string{"total", "grand total", "sub total", "subtotal", "jumlah"}

// isSummaryRow catches "TOTAL" rows under a table. They carry no IC and
// would otherwise fold the table's sums into the last candidate.
func isSummaryRow(row []string, cols Columns) bool {
	if clean.ICNumber(sheet.Cell(row, cols.IC)) != "" {
		return false
	}
	for _, cell := range row {
		label := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell), ":")))
		for _, s := range summaryLabels {
			if label == s {
				return true
			}
		}
	}
	return false
}

func startCandidate(row []string, cols Columns, base Record, index int) (Record, bool) {
	rawName := sheet.Cell(row, cols.Name)
	rawIC := sheet.Cell(row, cols.IC)
	if rawName == "" || rawIC == "" {
		return Record{}, false
	}
	switch strings.ToLower(rawName) {
	case "no", "name":
		return Record{}, false
	}
	ic := clean.ICNumber(rawIC)
	if ic == "" {
		return Record{}, false
	}
	name := clean.Name(rawName)
	if name == "" {
		return Record{}, false
	}

	rec := base
	rec.FullName = name
	rec.AlternateName = clean.AlternateName(rawName)
	rec.ICNumber = ic
	rec.SourceRow = index + 1
	if cols.Bank >= 0 {
		rec.BankName = clean.BankName(sheet.Cell(row, cols.Bank))
	}
	if cols.Account >= 0 {
		rec.AccountNumber = clean.Account(sheet.Cell(row, cols.Account))
	}
	if cols.Position >= 0 {
		rec.Position = sheet.Cell(row, cols.Position)
	}
	return rec, true
}

func aggregate(rec *Record, row []string, cols Columns) {
	add := func(idx int, dst *float64) {
		if idx >= 0 {
			*dst += clean.Float(sheet.Cell(row, idx))
		}
	}
	add(cols.Days, &rec.DaysWorked)
	add(cols.Wage, &rec.TotalWages)
	add(cols.Payment, &rec.TotalWages)
	add(cols.OT, &rec.TotalOT)
	add(cols.Transport, &rec.TotalAllowance)
	add(cols.Allowance, &rec.TotalAllowance)
	add(cols.Claim, &rec.TotalClaim)

	// The sheet's own total is authoritative; the first non-zero one wins.
	if cols.Total >= 0 && rec.TotalPayment == 0 {
		if v := clean.Float(sheet.Cell(row, cols.Total)); v > 0 {
			rec.TotalPayment = v
		}
	}

	if cols.Date >= 0 {
		if v := sheet.Cell(row, cols.Date); v != "" {
			if d, ok := clean.Date(v); ok {
				v = d
			}
			rec.WorkDates = appendUnique(rec.WorkDates, v)
		}
	}

	for _, idx := range sortedKeys(cols.Roster) {
		v := sheet.Cell(row, idx)
		if v == "" || len(v) >= 50 {
			continue
		}
		rec.RosterInfo = appendUnique(rec.RosterInfo, cols.Roster[idx]+": "+v)
	}
}

func (r *Record) roundAmounts() {
	r.DaysWorked = round2(r.DaysWorked)
	r.TotalWages = round2(r.TotalWages)
	r.TotalOT = round2(r.TotalOT)
	r.TotalAllowance = round2(r.TotalAllowance)
	r.TotalClaim = round2(r.TotalClaim)
	r.TotalPayment = round2(r.TotalPayment)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
