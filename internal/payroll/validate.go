package payroll

import (
	"fmt"
	"strings"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

const (
	crossCheckHeaderWindow = 10
	crossCheckMaxRows      = 10
)

// Finding is one observation about a record. Fixes describe a change that
// was applied; anything else is an open issue.
type Finding struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Fix    bool   `json:"fix"`
}

func (f Finding) String() string {
	if f.Fix {
		return "fixed: " + f.Detail
	}
	return f.Code + ": " + f.Detail
}

// ValidationEntry is a row of the masterlist's validation log.
type ValidationEntry struct {
	File      string    `json:"file"`
	Sheet     string    `json:"sheet"`
	Candidate string    `json:"candidate"`
	IC        string    `json:"ic"`
	Findings  []Finding `json:"findings"`
}

// Summary joins the findings the way the log sheet shows them.
func (v ValidationEntry) Summary() string {
	parts := make([]string, len(v.Findings))
	for i, f := range v.Findings {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

func newValidationEntry(r Record, findings []Finding) ValidationEntry {
	return ValidationEntry{
		File:      r.SourceFile,
		Sheet:     r.SourceSheet,
		Candidate: r.FullName,
		IC:        r.ICNumber,
		Findings:  findings,
	}
}

// Validate flags suspicious payment shapes, repairs them from the source
// sheet where it can, and reconciles the total with its components. The
// record is valid when every finding is a fix.
func Validate(r Record, src Source) (bool, []Finding, Record) {
	var findings []Finding
	corrected := r

	checked := false
	recheck := func() {
		if checked {
			return
		}
		checked = true
		if check := crossCheckSource(r, src); check != nil {
			check.apply(&corrected)
			findings = append(findings, Finding{Code: "CORRECTED", Detail: "corrected from source sheet", Fix: true})
		}
	}

	nonZero := 0
	for _, v := range []float64{r.TotalWages, r.TotalOT, r.TotalAllowance, r.TotalClaim, r.TotalPayment} {
		if v > 0 {
			nonZero++
		}
	}

	if nonZero == 1 && r.TotalPayment > 0 {
		findings = append(findings, Finding{
			Code:   "SUSPICIOUS",
			Detail: fmt.Sprintf("only 1 non-zero field (total=%s)", money(r.TotalPayment)),
		})
		recheck()
	}
	if r.TotalPayment > 0 && r.TotalWages == 0 && r.DaysWorked == 0 {
		findings = append(findings, Finding{
			Code:   "INCOMPLETE",
			Detail: fmt.Sprintf("payment=%s but wages=0, days=0", money(r.TotalPayment)),
		})
		recheck()
	}
	if r.DaysWorked > 0 && r.TotalPayment > 0 && r.TotalWages == 0 {
		findings = append(findings, Finding{
			Code:   "MISSING_WAGES",
			Detail: fmt.Sprintf("days=%s, payment=%s", money(r.DaysWorked), money(r.TotalPayment)),
		})
		recheck()
	}

	sum := round2(corrected.ComponentSum())
	if sum > 0 && corrected.TotalPayment == 0 {
		corrected.TotalPayment = sum
		findings = append(findings, Finding{Code: "TOTAL_FROM_COMPONENTS", Detail: "calculated total from components: " + money(sum), Fix: true})
	}
	if corrected.TotalPayment > 0 && sum > corrected.TotalPayment {
		corrected.TotalPayment = sum
		findings = append(findings, Finding{Code: "TOTAL_ADJUSTED", Detail: "adjusted total to match components: " + money(sum), Fix: true})
	}

	valid := true
	for _, f := range findings {
		if !f.Fix {
			valid = false
			break
		}
	}
	return valid, findings, corrected
}

// crossCheck holds amounts re-read from the source rows of one candidate.
type crossCheck struct {
	cols Columns

	days, wages, ot, allowance, claim, total float64
}

func (c *crossCheck) apply(r *Record) {
	if c.cols.Days >= 0 {
		r.DaysWorked = c.days
	}
	if c.cols.Wage >= 0 || c.cols.Payment >= 0 {
		r.TotalWages = c.wages
	}
	if c.cols.OT >= 0 {
		r.TotalOT = c.ot
	}
	if c.cols.Allowance >= 0 || c.cols.Transport >= 0 {
		r.TotalAllowance = c.allowance
	}
	if c.cols.Claim >= 0 {
		r.TotalClaim = c.claim
	}
	if c.cols.Total >= 0 {
		r.TotalPayment = c.total
	}
}

func crossCheckSource(r Record, src Source) *crossCheck {
	if src == nil {
		return nil
	}
	s, err := src.Sheet(r.SourceFile, r.SourceSheet)
	if err != nil {
		return nil
	}
	return crossCheckSheet(r.ICNumber, s)
}

// crossCheckSheet re-aggregates a candidate straight from the sheet: it
// finds the first row mentioning the IC, the nearest header above it, and
// sums the main row plus its continuation rows.
func crossCheckSheet(ic string, s *sheet.Sheet) *crossCheck {
	target := clean.CompactIC(ic)
	if target == "" {
		return nil
	}
	first := -1
	for i, row := range s.Rows {
		if strings.Contains(clean.CompactIC(sheet.RowText(row)), target) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	headerIdx, ok := nearestHeader(s.Rows, first, crossCheckHeaderWindow)
	if !ok {
		return nil
	}
	cols := IdentifyColumns(s.Rows[headerIdx])
	if cols.IC < 0 {
		return nil
	}

	main := -1
	for i := headerIdx + 1; i < len(s.Rows); i++ {
		if strings.Contains(clean.CompactIC(sheet.Cell(s.Rows[i], cols.IC)), target) {
			main = i
			break
		}
	}
	if main < 0 {
		return nil
	}

	c := &crossCheck{cols: cols}
	for offset := 0; offset < crossCheckMaxRows && main+offset < len(s.Rows); offset++ {
		row := s.Rows[main+offset]
		if offset > 0 && (sheet.Cell(row, cols.IC) != "" || IsHeaderRow(row)) {
			break
		}
		value := func(idx int) float64 {
			if idx < 0 {
				return 0
			}
			return clean.Float(sheet.Cell(row, idx))
		}
		c.days += value(cols.Days)
		c.wages += value(cols.Wage) + value(cols.Payment)
		c.ot += value(cols.OT)
		c.allowance += value(cols.Allowance) + value(cols.Transport)
		c.claim += value(cols.Claim)
		if v := value(cols.Total); v > c.total {
			c.total = v
		}
	}
	c.days, c.wages, c.ot = round2(c.days), round2(c.wages), round2(c.ot)
	c.allowance, c.claim = round2(c.allowance), round2(c.claim)
	return c
}

func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
