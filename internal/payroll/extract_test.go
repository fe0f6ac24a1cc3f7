package payroll

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/baito-events/baitokit/internal/sheet"
)

func roadshowRows() [][]string {
	return [][]string{
		{"Project: Roadshow", "", "Date: 1-3 April 2025"},
		{"Location: Mid Valley", "Time: 10am - 10pm"},
		{"Payment by: 30 April 2025"},
		{"No", "Name", "IC Number", "Bank Name", "Account No", "Day", "Wages", "OT", "Total"},
		{"1", "ali bin abu", "900101-14-5678", "Maybank", "1620 1234 5678", "1", "100", "20", ""},
		{"", "", "", "", "", "1", "100", "", ""},
		{"", "", "", "", "", "1", "100", "10", "330"},
		{"2", "siti aminah (Mira)", "920202-10-1234", "CIMB", "7000123456", "2", "200", "", "200"},
		{"", "TOTAL", "", "", "", "5", "500", "30", "530"},
		{"Name", "IC", "Payment", "Transport", "Claim"},
		{"Chong Wei", "880303-08-8888", "150", "20", "5"},
	}
}

func TestIdentifyColumns(t *testing.T) {
	cols := IdentifyColumns([]string{
		"No", "Name", "IC Number", "Bank Name", "Account No", "Position", "Day", "Wages",
		"Payment", "OT", "Transport", "Meal Allowance", "Claims", "Total", "2025-04-01",
	})

	assert.Equal(t, 1, cols.Name)
	assert.Equal(t, 2, cols.IC)
	assert.Equal(t, 3, cols.Bank)
	assert.Equal(t, 4, cols.Account)
	assert.Equal(t, 5, cols.Position)
	assert.Equal(t, 6, cols.Days)
	assert.Equal(t, -1, cols.Date)
	assert.Equal(t, 7, cols.Wage)
	assert.Equal(t, 8, cols.Payment)
	assert.Equal(t, 9, cols.OT)
	assert.Equal(t, 10, cols.Transport)
	assert.Equal(t, 11, cols.Allowance)
	assert.Equal(t, 12, cols.Claim)
	assert.Equal(t, 13, cols.Total)
	assert.Equal(t, map[int]string{14: "2025-04-01"}, cols.Roster)
	assert.True(t, cols.Usable())
	assert.True(t, cols.HasPayment())
}

func TestIdentifyColumnsFirstMatchWins(t *testing.T) {
	cols := IdentifyColumns([]string{"Name", "Bank Name", "Full Name", "IC", "IC (old)"})

	assert.Equal(t, 0, cols.Name)
	assert.Equal(t, 1, cols.Bank)
	assert.Equal(t, 3, cols.IC)
}

func TestSectionsSplitAtHeaders(t *testing.T) {
	sections := Sections(roadshowRows())

	require.Len(t, sections, 2)
	assert.Equal(t, 3, sections[0].HeaderRow)
	assert.Equal(t, 4, sections[0].Start)
	assert.Equal(t, 9, sections[0].End)
	assert.Equal(t, 10, sections[1].Start)
	assert.Equal(t, 11, sections[1].End)
}

func TestExtractSheet(t *testing.T) {
	s := &sheet.Sheet{Name: "Roadshow", Rows: roadshowRows()}

	records := ExtractSheet(s, Record{Month: "Apr", SourceFile: "april.xlsx"})
	require.Len(t, records, 3)

	ali := records[0]
	assert.Equal(t, "Ali Bin Abu", ali.FullName)
	assert.Equal(t, "900101145678", ali.ICNumber)
	assert.Equal(t, "Maybank", ali.BankName)
	assert.Equal(t, "162012345678", ali.AccountNumber)
	assert.Equal(t, 5, ali.SourceRow)
	assert.Equal(t, "Roadshow", ali.ProjectName)
	assert.Equal(t, "april.xlsx", ali.SourceFile)
	assert.InDelta(t, 3, ali.DaysWorked, 0.001)
	assert.InDelta(t, 300, ali.TotalWages, 0.001)
	assert.InDelta(t, 30, ali.TotalOT, 0.001)
	assert.InDelta(t, 330, ali.TotalPayment, 0.001)
	assert.Equal(t, "1-3 April 2025", ali.ProjectDateRange)
	assert.Equal(t, "30 April 2025", ali.PaymentDueDate)
	assert.Equal(t, "Mid Valley", ali.Location)
	assert.Equal(t, "10am - 10pm", ali.TimeSchedule)

	siti := records[1]
	assert.Equal(t, "Siti Aminah", siti.FullName)
	assert.Equal(t, "Mira", siti.AlternateName)
	assert.InDelta(t, 2, siti.DaysWorked, 0.001, "summary row must not fold into the last candidate")
	assert.InDelta(t, 200, siti.TotalPayment, 0.001)

	chong := records[2]
	assert.Equal(t, "880303088888", chong.ICNumber)
	assert.InDelta(t, 150, chong.TotalWages, 0.001)
	assert.InDelta(t, 20, chong.TotalAllowance, 0.001)
	assert.InDelta(t, 5, chong.TotalClaim, 0.001)
	assert.InDelta(t, 175, chong.TotalPayment, 0.001, "total falls back to the component sum")
}

func TestExtractSheetRosterAndDates(t *testing.T) {
	s := &sheet.Sheet{Name: "Booth", Rows: [][]string{
		{"Name", "IC", "Date", "Wages", "2025-04-01", "2025-04-02"},
		{"Tan", "910101-01-1111", "45748", "80", "Booth A", ""},
		{"", "", "02/04/2025", "80", "", "Booth B"},
		{"", "", "02/04/2025", "", "", ""},
	}}

	records := ExtractSheet(s, Record{})
	require.Len(t, records, 1)
	assert.Equal(t, []string{"2025-04-01", "2025-04-02"}, records[0].WorkDates)
	assert.Equal(t, []string{"2025-04-01: Booth A", "2025-04-02: Booth B"}, records[0].RosterInfo)
	assert.InDelta(t, 160, records[0].TotalPayment, 0.001)
}

func TestExtractSheetCapsRosterAndKeepsFirstTotal(t *testing.T) {
	s := &sheet.Sheet{Name: "Booth", Rows: [][]string{
		{"Name", "IC", "Wages", "Total", "2025-04-01", "2025-04-02", "2025-04-03", "2025-04-04", "2025-04-05", "2025-04-06"},
		{"Tan", "910101-01-1111", "50", "100", "A", "B", "C", "D", "E", "F"},
		{"", "", "50", "500"},
	}}

	records := ExtractSheet(s, Record{})
	require.Len(t, records, 1)
	assert.InDelta(t, 100, records[0].TotalPayment, 0.001, "the first non-zero total wins")
	require.Len(t, records[0].RosterInfo, 5)
	assert.Equal(t, "2025-04-01: A", records[0].RosterInfo[0])
	assert.Equal(t, "2025-04-05: E", records[0].RosterInfo[4])
}

func TestExtractSheetNameWithoutICEndsCandidate(t *testing.T) {
	s := &sheet.Sheet{Name: "S", Rows: [][]string{
		{"Name", "IC", "Wages"},
		{"Ali", "900101145678", "100"},
		{"Walk-in helper", "", "999"},
		{"", "", "50"},
	}}

	records := ExtractSheet(s, Record{})
	require.Len(t, records, 1)
	assert.InDelta(t, 100, records[0].TotalWages, 0.001)
}

func TestExtractSheetIgnoresRowsWithoutUsableIC(t *testing.T) {
	s := &sheet.Sheet{Name: "S", Rows: [][]string{
		{"Name", "IC"},
		{"Ali", "n/a"},
		{"No", "900101145678"},
	}}
	assert.Empty(t, ExtractSheet(s, Record{}))
}

func TestRepeatedICIsContinuation(t *testing.T) {
	s := &sheet.Sheet{Name: "S", Rows: [][]string{
		{"Name", "IC", "Day", "Wages"},
		{"Ali", "900101145678", "1", "100"},
		{"Ali", "900101145678", "1", "100"},
	}}

	records := ExtractSheet(s, Record{})
	require.Len(t, records, 1)
	assert.InDelta(t, 2, records[0].DaysWorked, 0.001)
}

func writeWorkbook(t *testing.T, dir, name, sheetName string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheetName))
	for r, row := range rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cell, &cells))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExtractFiles(t *testing.T) {
	dir := t.TempDir()
	april := writeWorkbook(t, dir, "Baito April 2025.xlsx", "Roadshow", roadshowRows())
	march := writeWorkbook(t, dir, "Baito March 2025.xlsx", "Expo", [][]string{
		{"Name", "IC", "Total"},
		{"Lim", "930303-03-3333", "250"},
	})
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))

	res, err := ExtractFiles(context.Background(), []string{april, bad, march}, Options{
		Validate: true,
		Workers:  2,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Len(t, res.Records, 4)
	assert.Equal(t, "Mar", res.Records[0].Month)
	assert.Equal(t, "Lim", res.Records[0].FullName)
	assert.Equal(t, "Apr", res.Records[1].Month)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "notes.txt", res.Errors[0].File)

	// Lim only has a total, which the validator flags.
	require.NotEmpty(t, res.Validations)
	assert.Equal(t, "Lim", res.Validations[0].Candidate)
}

func TestExtractFilesCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "april.xlsx", "S", roadshowRows())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExtractFiles(ctx, []string{path}, Options{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSortRecords(t *testing.T) {
	records := []Record{
		{Month: "Unknown", FullName: "A"},
		{Month: "Dec", FullName: "B"},
		{Month: "Jan", SourceFile: "b.xlsx", FullName: "C"},
		{Month: "Jan", SourceFile: "a.xlsx", FullName: "D"},
	}
	SortRecords(records)

	var names []string
	for _, r := range records {
		names = append(names, r.FullName)
	}
	assert.Equal(t, []string{"D", "C", "B", "A"}, names)
}
