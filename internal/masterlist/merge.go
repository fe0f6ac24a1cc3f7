package masterlist

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

const (
	MergedSheet  = "Merged Data"
	SummarySheet = "Summary"
	SourceColumn = "Source File"
)

// MergeStats describes a merge run.
type MergeStats struct {
	Files        int      `json:"files"`
	Processed    int      `json:"processed"`
	Records      int      `json:"records"`
	TotalPayment float64  `json:"total_payment"`
	UniqueICs    int      `json:"unique_ics"`
	DuplicateICs int      `json:"duplicate_ics"`
	Errors       []string `json:"errors,omitempty"`
}

type mergedRow map[string]string

// Header aliases for the fields merge reads. Masterlists written by Write
// use the snake_case names; older hand-made sheets use the titled ones.
var (
	totalHeaders = []string{"Total Payment", "total_payment"}
	icHeaders    = []string{"IC Number", "ic_number"}
	nameHeaders  = []string{"Name", "full_name"}
	dateHeaders  = []string{"Payment Date", "payment_due_date"}
)

// get returns the first non-empty value among the aliased headers.
func (r mergedRow) get(headers []string) string {
	for _, h := range headers {
		if v := r[h]; v != "" {
			return v
		}
	}
	return ""
}

func hasAny(columns map[string]bool, headers []string) bool {
	for _, h := range headers {
		if columns[h] {
			return true
		}
	}
	return false
}

// Merge concatenates the first sheet of every workbook into one sheet,
// tags each row with its source file, and adds a summary sheet. Files that
// cannot be read are listed in the stats and skipped.
func Merge(paths []string, out string) (MergeStats, error) {
	stats := MergeStats{Files: len(paths)}
	var (
		header []string
		seen   = map[string]bool{}
		rows   []mergedRow
	)
	addColumn := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			header = append(header, h)
		}
	}

	for _, path := range paths {
		wb, err := sheet.Open(path)
		if err == nil && len(wb.Sheets) == 0 {
			err = ErrNoCandidates
		}
		if err != nil {
			stats.Errors = append(stats.Errors, filepath.Base(path)+": "+err.Error())
			continue
		}
		s := wb.Sheets[0]
		stats.Processed++
		if len(s.Rows) == 0 {
			continue
		}
		cols := make([]string, len(s.Rows[0]))
		for i, h := range s.Rows[0] {
			cols[i] = strings.TrimSpace(h)
			addColumn(cols[i])
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for _, raw := range s.Rows[1:] {
			if sheet.Empty(raw) {
				continue
			}
			row := mergedRow{SourceColumn: stem}
			for i, h := range cols {
				if h != "" {
					row[h] = sheet.Cell(raw, i)
				}
			}
			rows = append(rows, row)
			stats.TotalPayment += clean.Float(row.get(totalHeaders))
		}
	}
	addColumn(SourceColumn)
	stats.Records = len(rows)

	sortMerged(rows, seen)

	if hasAny(seen, icHeaders) {
		unique := map[string]bool{}
		for _, r := range rows {
			if ic := r.get(icHeaders); ic != "" {
				unique[ic] = true
			}
		}
		stats.UniqueICs = len(unique)
		stats.DuplicateICs = stats.Records - stats.UniqueICs
	}

	data := make([][]any, len(rows))
	for i, r := range rows {
		cells := make([]any, len(header))
		for j, h := range header {
			cells[j] = cellValue(h, r[h])
		}
		data[i] = cells
	}
	err := Save(out,
		Table{Name: MergedSheet, Header: header, Rows: data},
		Table{Name: SummarySheet, Rows: summaryRows(stats, paths)},
	)
	return stats, err
}

// sortMerged orders rows by payment date then name when the merged sheet
// has a payment date, otherwise by name. Undated rows go last.
func sortMerged(rows []mergedRow, columns map[string]bool) {
	switch {
	case hasAny(columns, dateHeaders):
		dates := make(map[int]string, len(rows))
		for i, r := range rows {
			if d, ok := clean.Date(r.get(dateHeaders)); ok {
				dates[i] = d
			}
		}
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			da, oka := dates[order[a]]
			db, okb := dates[order[b]]
			if oka != okb {
				return oka
			}
			if da != db {
				return da < db
			}
			return rows[order[a]].get(nameHeaders) < rows[order[b]].get(nameHeaders)
		})
		sorted := make([]mergedRow, len(rows))
		for i, idx := range order {
			sorted[i] = rows[idx]
		}
		copy(rows, sorted)
	case hasAny(columns, nameHeaders):
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].get(nameHeaders) < rows[b].get(nameHeaders) })
	}
}

func summaryRows(stats MergeStats, paths []string) [][]any {
	rows := [][]any{
		{"Total Files Merged", stats.Files},
		{"Total Records", stats.Records},
		{"Total Payment", FormatRM(stats.TotalPayment)},
		{"Files Processed Successfully", stats.Processed},
		{"Errors", len(stats.Errors)},
	}
	if stats.UniqueICs > 0 {
		rows = append(rows,
			[]any{"Unique IC Numbers", stats.UniqueICs},
			[]any{"Duplicate IC Numbers", stats.DuplicateICs},
		)
	}
	rows = append(rows, []any{}, []any{"Source Files:"})
	for _, p := range paths {
		rows = append(rows, []any{filepath.Base(p)})
	}
	if len(stats.Errors) > 0 {
		rows = append(rows, []any{}, []any{"Errors:"})
		for _, e := range stats.Errors {
			rows = append(rows, []any{e})
		}
	}
	return rows
}

var printer = message.NewPrinter(language.English)

// FormatRM formats an amount as ringgit, e.g. "RM 1,234.50".
func FormatRM(v float64) string {
	return printer.Sprintf("RM %.2f", v)
}

// cellValue keeps identifiers as text and turns other numeric strings back
// into numbers.
func cellValue(header, v string) any {
	if v == "" {
		return nil
	}
	h := strings.ToLower(header)
	for _, key := range []string{"ic", "account", "phone", "no"} {
		if strings.Contains(h, key) {
			return v
		}
	}
	if len(v) > 1 && v[0] == '0' && v[1] != '.' {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
