package masterlist

import (
	"fmt"
	"strings"

	"github.com/baito-events/baitokit/internal/payroll"
)

var logicColumns = []string{
	"Name", "IC", "File", "Sheet", "Month", "Status",
	"Extracted_Days", "Extracted_Wages", "Extracted_Total", "Expected_Total",
	"Calculation_Logic", "Issues", "Excel_Rows", "Columns_Found",
}

// LogicReport lays logic results out as All Results, Valid and Issues
// sheets. Issues is omitted when every record passed.
func LogicReport(results []payroll.LogicResult) []Table {
	all := Table{Name: "All Results", Header: logicColumns}
	valid := Table{Name: "Valid", Header: logicColumns}
	issues := Table{Name: "Issues", Header: logicColumns}
	for _, r := range results {
		var expected any
		if r.Status != payroll.LogicNoHeader && r.Status != payroll.LogicNotFound &&
			r.Status != payroll.LogicFileNotFound && r.Status != payroll.LogicError {
			expected = r.ExpectedTotal
		}
		row := []any{
			r.Name, r.IC, r.File, r.Sheet, r.Month, string(r.Status),
			r.ExtractedDays, r.ExtractedWages, r.ExtractedTotal, expected,
			strings.Join(r.Steps, " | "), strings.Join(r.Issues, "; "),
			joinInts(r.Rows), columnsFound(r.Columns),
		}
		all.Rows = append(all.Rows, row)
		if r.Status.Passed() {
			valid.Rows = append(valid.Rows, row)
		} else {
			issues.Rows = append(issues.Rows, row)
		}
	}
	tables := []Table{all, valid}
	if len(issues.Rows) > 0 {
		tables = append(tables, issues)
	}
	return tables
}

var reasonColumns = []string{
	"Name", "IC", "File", "Sheet", "Month", "Status", "Issues",
	"Extracted_Days", "Expected_Days", "Extracted_Payment", "Expected_Payment", "Reasoning",
}

// ReasonReport lays reason results out as All Validations, Mismatches and
// Summary sheets.
func ReasonReport(results []payroll.ReasonResult) []Table {
	all := Table{Name: "All Validations", Header: reasonColumns}
	mismatches := Table{Name: "Mismatches", Header: reasonColumns}
	counts := map[payroll.ReasonStatus]int{}
	for _, r := range results {
		counts[r.Status]++
		row := []any{
			r.Name, r.IC, r.File, r.Sheet, r.Month, string(r.Status), strings.Join(r.Issues, "; "),
			r.Extracted.Days, r.Expected.Days, r.Extracted.Payment, r.Expected.Payment,
			strings.Join(r.Reasoning, " | "),
		}
		all.Rows = append(all.Rows, row)
		if r.Status == payroll.ReasonMismatch {
			mismatches.Rows = append(mismatches.Rows, row)
		}
	}

	accuracy := 0.0
	if len(results) > 0 {
		accuracy = float64(counts[payroll.ReasonValid]) / float64(len(results)) * 100
	}
	summary := Table{Name: "Summary", Header: []string{"Metric", "Value"}, Rows: [][]any{
		{"Total Records", len(results)},
		{"Valid", counts[payroll.ReasonValid]},
		{"Mismatch", counts[payroll.ReasonMismatch]},
		{"Not Found", counts[payroll.ReasonNotFound]},
		{"Error", counts[payroll.ReasonError]},
		{"Accuracy %", fmt.Sprintf("%.2f%%", accuracy)},
	}}

	tables := []Table{all}
	if len(mismatches.Rows) > 0 {
		tables = append(tables, mismatches)
	}
	return append(tables, summary)
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

func columnsFound(cols map[string]int) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cols))
	for _, role := range []string{
		"name", "ic", "bank", "account", "position", "days", "date",
		"wage", "payment", "ot", "transport", "allowance", "claim", "total",
	} {
		if i, ok := cols[role]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", role, i+1))
		}
	}
	return strings.Join(parts, ", ")
}
