package payroll

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

type ReasonStatus string

const (
	ReasonValid    ReasonStatus = "VALID"
	ReasonMismatch ReasonStatus = "MISMATCH"
	ReasonNotFound ReasonStatus = "NOT_FOUND"
	ReasonError    ReasonStatus = "ERROR"
)

const (
	reasonMaxDays     = 50
	reasonMinTotal    = 500
	reasonMaxValue    = 10000
	reasonDaysSlack   = 0.1
	reasonPaymentDiff = 0.05
)

// Expected is what Reason believes the record should hold.
type Expected struct {
	Days    float64 `json:"days"`
	Wages   float64 `json:"wages"`
	Payment float64 `json:"payment"`
}

// ReasonResult explains how a record compares to a header-blind reading of
// its source rows.
type ReasonResult struct {
	Name      string       `json:"name"`
	IC        string       `json:"ic"`
	File      string       `json:"file"`
	Sheet     string       `json:"sheet"`
	Month     string       `json:"month"`
	Status    ReasonStatus `json:"status"`
	Extracted Expected     `json:"extracted"`
	Expected  Expected     `json:"expected"`
	Issues    []string     `json:"issues,omitempty"`
	Reasoning []string     `json:"reasoning,omitempty"`
}

func newReasonResult(r Record) ReasonResult {
	return ReasonResult{
		Name:      r.FullName,
		IC:        r.ICNumber,
		File:      r.SourceFile,
		Sheet:     r.SourceSheet,
		Month:     r.Month,
		Extracted: Expected{Days: r.DaysWorked, Wages: r.TotalWages, Payment: r.TotalPayment},
	}
}

// Reason re-reads every row that mentions the record's IC and classifies
// its numbers by size alone: up to 50 is days, up to 500 is wages, and the
// largest value from 500 up is the total.
func Reason(r Record, s *sheet.Sheet) ReasonResult {
	res := newReasonResult(r)

	target := clean.CompactIC(r.ICNumber)
	var rows []int
	if target != "" {
		for i, row := range s.Rows {
			if strings.Contains(clean.CompactIC(sheet.RowText(row)), target) {
				rows = append(rows, i)
			}
		}
	}
	if len(rows) == 0 {
		msg := fmt.Sprintf("IC %s not found in sheet", target)
		res.Status = ReasonNotFound
		res.Issues = append(res.Issues, msg)
		res.Reasoning = append(res.Reasoning, "search: "+msg)
		return res
	}
	res.Reasoning = append(res.Reasoning, "search: found in sheet")

	var exp Expected
	for _, i := range rows {
		res.Reasoning = append(res.Reasoning, fmt.Sprintf("row %d: %s", i+1, sheet.RowTextSep(s.Rows[i], " | ")))
		for col, cell := range s.Rows[i] {
			v, ok := number(cell)
			if !ok || v <= 0 || v >= reasonMaxValue {
				continue
			}
			switch {
			case v <= reasonMaxDays:
				exp.Days += v
				res.Reasoning = append(res.Reasoning, fmt.Sprintf("  col %d: %s (likely days)", col+1, money(v)))
			case v < reasonMinTotal:
				exp.Wages += v
				res.Reasoning = append(res.Reasoning, fmt.Sprintf("  col %d: %s (likely wages)", col+1, money(v)))
			case v > exp.Payment:
				exp.Payment = v
				res.Reasoning = append(res.Reasoning, fmt.Sprintf("  col %d: %s (likely total payment)", col+1, money(v)))
			}
		}
	}
	exp.Days, exp.Wages = round2(exp.Days), round2(exp.Wages)
	if exp.Payment == 0 && exp.Wages > 0 {
		exp.Payment = exp.Wages
		res.Reasoning = append(res.Reasoning, "total payment = wages ("+money(exp.Wages)+")")
	}
	res.Expected = exp

	if math.Abs(r.DaysWorked-exp.Days) > reasonDaysSlack {
		res.Issues = append(res.Issues, fmt.Sprintf("days: extracted=%s, expected=%s", money(r.DaysWorked), money(exp.Days)))
	}
	if exp.Payment > 0 {
		if diff := math.Abs(r.TotalPayment-exp.Payment) / exp.Payment; diff > reasonPaymentDiff {
			res.Issues = append(res.Issues, fmt.Sprintf("payment: extracted=%s, expected=%s (diff: %.1f%%)",
				money(r.TotalPayment), money(exp.Payment), diff*100))
		}
	}
	res.Status = ReasonValid
	if len(res.Issues) > 0 {
		res.Status = ReasonMismatch
	}
	return res
}

// ReasonAll runs Reason for every record against its source. A missing
// source counts as not found.
func ReasonAll(records []Record, src Source) []ReasonResult {
	out := make([]ReasonResult, 0, len(records))
	for _, r := range records {
		s, err := src.Sheet(r.SourceFile, r.SourceSheet)
		if err != nil {
			res := newReasonResult(r)
			res.Status = ReasonNotFound
			if !isNotFound(err) {
				res.Status = ReasonError
			}
			res.Issues = append(res.Issues, err.Error())
			out = append(out, res)
			continue
		}
		out = append(out, Reason(r, s))
	}
	return out
}

// number accepts only plain numeric cells. Text such as a dashed IC or an
// "RM" amount is not a number here.
func number(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
