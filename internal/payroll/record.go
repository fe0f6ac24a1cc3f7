// Package payroll rebuilds candidate payment records from promoter payment
// workbooks.
//
// Payment workbooks are laid out by hand: one sheet per project, several
// sub-tables per sheet, each starting with a header row that names the
// candidate and IC columns. A candidate who worked several days appears on
// one main row followed by continuation rows that leave the name and IC
// blank. Extraction finds the sections, maps their columns by header text
// and folds each candidate's rows into one Record.
package payroll

import (
	"math"
	"sort"

	"github.com/baito-events/baitokit/internal/clean"
)

// Record is one candidate's aggregated payment for one project sheet.
type Record struct {
	Month         string `json:"month"`
	SourceFile    string `json:"source_file"`
	SourceSheet   string `json:"source_sheet"`
	SourceRow     int    `json:"source_row"`
	ProjectName   string `json:"project_name"`
	FullName      string `json:"full_name"`
	AlternateName string `json:"alternate_name,omitempty"`
	ICNumber      string `json:"ic_number"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Position      string `json:"position,omitempty"`

	DaysWorked     float64 `json:"days_worked"`
	TotalWages     float64 `json:"total_wages"`
	TotalOT        float64 `json:"total_ot"`
	TotalAllowance float64 `json:"total_allowance"`
	TotalClaim     float64 `json:"total_claim"`
	TotalPayment   float64 `json:"total_payment"`

	WorkDates  []string `json:"work_dates,omitempty"`
	RosterInfo []string `json:"roster_info,omitempty"`

	ProjectMetadata
}

// ProjectMetadata is the free text found above the first table of a sheet.
type ProjectMetadata struct {
	ProjectDateRange string `json:"project_date_range,omitempty"`
	PaymentDueDate   string `json:"payment_due_date,omitempty"`
	Location         string `json:"location,omitempty"`
	TimeSchedule     string `json:"time_schedule,omitempty"`
}

// ComponentSum is wages + OT + allowance + claim.
func (r Record) ComponentSum() float64 {
	return r.TotalWages + r.TotalOT + r.TotalAllowance + r.TotalClaim
}

// settleTotal makes the total at least the sum of its components.
func (r *Record) settleTotal() {
	sum := round2(r.ComponentSum())
	if r.TotalPayment == 0 && sum > 0 {
		r.TotalPayment = sum
	}
	if sum > r.TotalPayment {
		r.TotalPayment = sum
	}
}

// SortRecords orders records by month, file, sheet and name.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ma, mb := clean.MonthOrder(a.Month), clean.MonthOrder(b.Month); ma != mb {
			return ma < mb
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.SourceSheet != b.SourceSheet {
			return a.SourceSheet < b.SourceSheet
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.SourceRow < b.SourceRow
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
