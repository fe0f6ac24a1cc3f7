package masterlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/baito-events/baitokit/internal/payroll"
)

func sampleRecords() []payroll.Record {
	return []payroll.Record{
		{
			Month: "Apr", SourceFile: "april.xlsx", SourceSheet: "Roadshow", SourceRow: 5, ProjectName: "Roadshow",
			FullName: "Ali Bin Abu", ICNumber: "900101145678", BankName: "Maybank", AccountNumber: "0162012345678901",
			DaysWorked: 3, TotalWages: 300, TotalOT: 30, TotalPayment: 330,
			WorkDates:       []string{"2025-04-01", "2025-04-02"},
			RosterInfo:      []string{"2025-04-01: Booth A"},
			ProjectMetadata: payroll.ProjectMetadata{Location: "Mid Valley"},
		},
		{Month: "Apr", SourceFile: "april.xlsx", SourceSheet: "Roadshow", FullName: "Siti", ICNumber: "920202101234", TotalPayment: 200},
	}
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	validations := []payroll.ValidationEntry{{
		File: "april.xlsx", Sheet: "Roadshow", Candidate: "Siti", IC: "920202101234",
		Findings: []payroll.Finding{{Code: "SUSPICIOUS", Detail: "only 1 non-zero field (total=200)"}},
	}}

	require.NoError(t, Write(path, sampleRecords(), validations))

	records, err := Read(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, sampleRecords()[0], records[0])
	assert.Equal(t, "Siti", records[1].FullName)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{CandidatesSheet, LogSheet}, f.GetSheetList())

	issues, err := f.GetCellValue(LogSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "SUSPICIOUS: only 1 non-zero field (total=200)", issues)

	typ, err := f.GetCellType(CandidatesSheet, "J2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ, "account numbers stay text")
}

func TestWriteStylesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, Write(path, sampleRecords(), nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{CandidatesSheet}, f.GetSheetList())

	styleID, err := f.GetCellStyle(CandidatesSheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
	require.Len(t, style.Fill.Color, 1)
	assert.True(t, strings.HasSuffix(strings.ToUpper(style.Fill.Color[0]), headerFill))

	panes, err := f.GetPanes(CandidatesSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, "A2", panes.TopLeftCell)

	width, err := f.GetColWidth(CandidatesSheet, "F")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("Ali Bin Abu")+2), width, 0.01)
}

func TestReadWithoutCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.xlsx")
	require.NoError(t, Save(path, Table{Name: "Something", Header: []string{"a"}}))

	_, err := Read(path)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, sampleRecords(), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(CandidatesSheet, "F2")
	require.NoError(t, err)
	assert.Equal(t, "Ali Bin Abu", v)
}

func TestSaveNeedsTables(t *testing.T) {
	assert.Error(t, Save(filepath.Join(t.TempDir(), "x.xlsx")))
}

func TestLogicReport(t *testing.T) {
	tables := LogicReport([]payroll.LogicResult{
		{Name: "A", Status: payroll.LogicValid, ExpectedTotal: 100, Rows: []int{2, 3}, Columns: map[string]int{"ic": 1, "name": 0}},
		{Name: "B", Status: payroll.LogicMismatch, ExpectedTotal: 50},
		{Name: "C", Status: payroll.LogicNotFound},
	})

	require.Len(t, tables, 3)
	assert.Equal(t, "All Results", tables[0].Name)
	assert.Len(t, tables[0].Rows, 3)
	require.Len(t, tables[1].Rows, 1)
	assert.Equal(t, "2, 3", tables[1].Rows[0][12])
	assert.Equal(t, "name=1, ic=2", tables[1].Rows[0][13])
	assert.Len(t, tables[2].Rows, 2)
	assert.Nil(t, tables[2].Rows[1][9], "no expected total when the record was not found")

	assert.Len(t, LogicReport([]payroll.LogicResult{{Status: payroll.LogicValidZero}}), 2)
}

func TestReasonReport(t *testing.T) {
	tables := ReasonReport([]payroll.ReasonResult{
		{Name: "A", Status: payroll.ReasonValid},
		{Name: "B", Status: payroll.ReasonMismatch},
		{Name: "C", Status: payroll.ReasonValid},
		{Name: "D", Status: payroll.ReasonNotFound},
	})

	require.Len(t, tables, 3)
	assert.Equal(t, []string{"All Validations", "Mismatches", "Summary"},
		[]string{tables[0].Name, tables[1].Name, tables[2].Name})
	assert.Equal(t, []any{"Accuracy %", "50.00%"}, tables[2].Rows[5])
}

func writeExtract(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	table := Table{Name: "Extract", Header: []string{"Name", "IC Number", "Payment Date", "Total Payment"}, Rows: rows}
	require.NoError(t, Save(path, table))
	return path
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeExtract(t, dir, "baito_extracted_apr.xlsx", [][]any{
		{"Siti", "920202101234", "2025-04-30", 200.0},
		{"Ali", "900101145678", "", 1000.5},
	})
	b := writeExtract(t, dir, "baito_extracted_mar.xlsx", [][]any{
		{"Ali", "900101145678", "2025-03-31", 34.0},
	})
	bad := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, os.WriteFile(bad, []byte("not a workbook"), 0o644))
	out := filepath.Join(dir, "master.xlsx")

	stats, err := Merge([]string{a, b, bad}, out)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 3, stats.Records)
	assert.InDelta(t, 1234.5, stats.TotalPayment, 0.001)
	assert.Equal(t, 2, stats.UniqueICs)
	assert.Equal(t, 1, stats.DuplicateICs)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "broken.xlsx")

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(MergedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Name", "IC Number", "Payment Date", "Total Payment", SourceColumn}, rows[0])
	assert.Equal(t, "baito_extracted_mar", rows[1][4])
	assert.Equal(t, "Siti", rows[2][0])
	assert.Equal(t, "Ali", rows[3][0], "rows without a payment date sort last")

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Payment", "RM 1,234.50"}, summary[2])
}

func TestMergeMasterlists(t *testing.T) {
	dir := t.TempDir()
	apr := filepath.Join(dir, "masterlist_apr.xlsx")
	may := filepath.Join(dir, "masterlist_may.xlsx")
	require.NoError(t, Write(apr, []payroll.Record{
		{Month: "Apr", FullName: "Zul", ICNumber: "900101145678", TotalPayment: 300},
	}, nil))
	require.NoError(t, Write(may, []payroll.Record{
		{Month: "May", FullName: "Ali", ICNumber: "900101145678", TotalPayment: 200},
	}, nil))
	out := filepath.Join(dir, "merged.xlsx")

	stats, err := Merge([]string{apr, may}, out)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Records)
	assert.InDelta(t, 500, stats.TotalPayment, 0.001)
	assert.Equal(t, 1, stats.UniqueICs)
	assert.Equal(t, 1, stats.DuplicateICs)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(MergedSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	name := indexOf(rows[0], "full_name")
	require.GreaterOrEqual(t, name, 0)
	assert.Equal(t, "Ali", rows[1][name])
	assert.Equal(t, "Zul", rows[2][name])

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Total Payment", "RM 500.00"}, summary[2])
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func TestFormatRM(t *testing.T) {
	assert.Equal(t, "RM 0.00", FormatRM(0))
	assert.Equal(t, "RM 1,234,567.89", FormatRM(1234567.891))
}
