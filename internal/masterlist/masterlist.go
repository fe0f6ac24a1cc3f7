package masterlist

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/payroll"
	"github.com/baito-events/baitokit/internal/sheet"
)

const (
	CandidatesSheet = "All Candidates"
	LogSheet        = "Validation Log"
)

var ErrNoCandidates = errors.New("workbook has no candidates sheet")

// Columns of the candidates sheet, in order.
var Columns = []string{
	"month", "source_file", "source_sheet", "source_row", "project_name",
	"full_name", "alternate_name", "ic_number", "bank_name", "account_number", "position",
	"days_worked", "total_wages", "total_ot", "total_allowance", "total_claim", "total_payment",
	"work_dates", "roster_info",
	"project_date_range", "payment_due_date", "location", "time_schedule",
}

var logColumns = []string{"file", "sheet", "candidate", "ic", "issues"}

const (
	datesSep  = ", "
	rosterSep = "; "
)

// CandidateTables lays records and validation entries out as the
// masterlist sheets. The log sheet is left out when there is nothing to log.
func CandidateTables(records []payroll.Record, validations []payroll.ValidationEntry) []Table {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			r.Month, r.SourceFile, r.SourceSheet, r.SourceRow, r.ProjectName,
			r.FullName, r.AlternateName, r.ICNumber, r.BankName, r.AccountNumber, r.Position,
			r.DaysWorked, r.TotalWages, r.TotalOT, r.TotalAllowance, r.TotalClaim, r.TotalPayment,
			strings.Join(r.WorkDates, datesSep), strings.Join(r.RosterInfo, rosterSep),
			r.ProjectDateRange, r.PaymentDueDate, r.Location, r.TimeSchedule,
		}
	}
	tables := []Table{{Name: CandidatesSheet, Header: Columns, Rows: rows}}
	if len(validations) == 0 {
		return tables
	}

	logRows := make([][]any, len(validations))
	for i, v := range validations {
		logRows[i] = []any{v.File, v.Sheet, v.Candidate, v.IC, v.Summary()}
	}
	return append(tables, Table{Name: LogSheet, Header: logColumns, Rows: logRows})
}

// Write saves a masterlist workbook.
func Write(path string, records []payroll.Record, validations []payroll.ValidationEntry) error {
	return Save(path, CandidateTables(records, validations)...)
}

// WriteTo streams a masterlist workbook.
func WriteTo(w io.Writer, records []payroll.Record, validations []payroll.ValidationEntry) error {
	return Encode(w, CandidateTables(records, validations)...)
}

// Read loads the candidates sheet of a masterlist. Columns are matched by
// header so older masterlists with fewer columns still load.
func Read(path string) ([]payroll.Record, error) {
	wb, err := sheet.Open(path)
	if err != nil {
		return nil, err
	}
	s, ok := wb.Sheet(CandidatesSheet)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCandidates, path)
	}
	if len(s.Rows) == 0 {
		return nil, nil
	}

	index := map[string]int{}
	for i, h := range s.Rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, key string) string {
		i, ok := index[key]
		if !ok {
			return ""
		}
		return sheet.Cell(row, i)
	}
	num := func(row []string, key string) float64 {
		return clean.Float(get(row, key))
	}
	list := func(row []string, key, sep string) []string {
		v := get(row, key)
		if v == "" {
			return nil
		}
		return strings.Split(v, sep)
	}

	records := make([]payroll.Record, 0, len(s.Rows)-1)
	for _, row := range s.Rows[1:] {
		if sheet.Empty(row) {
			continue
		}
		sourceRow, _ := strconv.Atoi(get(row, "source_row"))
		records = append(records, payroll.Record{
			Month:          get(row, "month"),
			SourceFile:     get(row, "source_file"),
			SourceSheet:    get(row, "source_sheet"),
			SourceRow:      sourceRow,
			ProjectName:    get(row, "project_name"),
			FullName:       get(row, "full_name"),
			AlternateName:  get(row, "alternate_name"),
			ICNumber:       clean.CompactIC(get(row, "ic_number")),
			BankName:       get(row, "bank_name"),
			AccountNumber:  clean.Account(get(row, "account_number")),
			Position:       get(row, "position"),
			DaysWorked:     num(row, "days_worked"),
			TotalWages:     num(row, "total_wages"),
			TotalOT:        num(row, "total_ot"),
			TotalAllowance: num(row, "total_allowance"),
			TotalClaim:     num(row, "total_claim"),
			TotalPayment:   num(row, "total_payment"),
			WorkDates:      list(row, "work_dates", datesSep),
			RosterInfo:     list(row, "roster_info", rosterSep),
			ProjectMetadata: payroll.ProjectMetadata{
				ProjectDateRange: get(row, "project_date_range"),
				PaymentDueDate:   get(row, "payment_due_date"),
				Location:         get(row, "location"),
				TimeSchedule:     get(row, "time_schedule"),
			},
		})
	}
	return records, nil
}
