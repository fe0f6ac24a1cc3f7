package payroll

import (
	"fmt"
	"math"
	"strings"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

type LogicStatus string

const (
	LogicValid        LogicStatus = "VALID"
	LogicMinorDiff    LogicStatus = "MINOR_DIFF"
	LogicMismatch     LogicStatus = "MISMATCH"
	LogicValidZero    LogicStatus = "VALID_ZERO"
	LogicCheck        LogicStatus = "CHECK"
	LogicNotFound     LogicStatus = "NOT_FOUND"
	LogicNoHeader     LogicStatus = "NO_HEADER"
	LogicFileNotFound LogicStatus = "FILE_NOT_FOUND"
	LogicError        LogicStatus = "ERROR"
)

// Passed reports whether the status needs no follow-up.
func (s LogicStatus) Passed() bool {
	return s == LogicValid || s == LogicValidZero || s == LogicMinorDiff
}

const (
	logicContinuationRows = 4
	logicMaxDays          = 50
	logicMaxRowPayment    = 10000
)

// LogicComponents are the column sums over a candidate's rows.
type LogicComponents struct {
	Days      float64 `json:"days"`
	Wages     float64 `json:"wages"`
	Payment   float64 `json:"payment"`
	OT        float64 `json:"ot"`
	Allowance float64 `json:"allowance"`
	Claim     float64 `json:"claim"`
	Transport float64 `json:"transport"`
	Total     float64 `json:"total"`
}

// LogicResult is the outcome of recomputing one record's total from the
// column structure of its source sheet.
type LogicResult struct {
	Name           string          `json:"name"`
	IC             string          `json:"ic"`
	File           string          `json:"file"`
	Sheet          string          `json:"sheet"`
	Month          string          `json:"month"`
	Status         LogicStatus     `json:"status"`
	ExtractedDays  float64         `json:"extracted_days"`
	ExtractedWages float64         `json:"extracted_wages"`
	ExtractedTotal float64         `json:"extracted_total"`
	ExpectedTotal  float64         `json:"expected_total"`
	Components     LogicComponents `json:"components"`
	Steps          []string        `json:"steps,omitempty"`
	Issues         []string        `json:"issues,omitempty"`
	// Rows are 1-based sheet rows that made up the candidate.
	Rows    []int          `json:"rows,omitempty"`
	Columns map[string]int `json:"columns,omitempty"`
}

func newLogicResult(r Record) LogicResult {
	return LogicResult{
		Name:           r.FullName,
		IC:             r.ICNumber,
		File:           r.SourceFile,
		Sheet:          r.SourceSheet,
		Month:          r.Month,
		ExtractedDays:  r.DaysWorked,
		ExtractedWages: r.TotalWages,
		ExtractedTotal: r.TotalPayment,
	}
}

// CheckLogic recomputes the expected total for r from s. The Total column
// wins when present, then per-row Payment plus extras, then Wages plus
// extras.
func CheckLogic(r Record, s *sheet.Sheet) LogicResult {
	res := newLogicResult(r)

	headers := HeaderRows(s.Rows)
	if len(headers) == 0 {
		res.Status = LogicNoHeader
		res.Issues = append(res.Issues, "could not find header row")
		return res
	}

	target := clean.CompactIC(r.ICNumber)
	headerIdx := headers[0]
	if first := firstRowWithIC(s.Rows, target); first > 0 {
		if h, ok := nearestHeader(s.Rows, first, first); ok {
			headerIdx = h
		}
	}
	cols := IdentifyColumns(s.Rows[headerIdx])
	res.Columns = cols.Found()

	rows := logicCandidateRows(s.Rows, headerIdx, cols, target)
	if len(rows) == 0 {
		res.Status = LogicNotFound
		res.Issues = append(res.Issues, fmt.Sprintf("IC %s not found in sheet", target))
		return res
	}
	for _, i := range rows {
		res.Rows = append(res.Rows, i+1)
	}
	res.Steps = append(res.Steps, fmt.Sprintf("found at rows %v", res.Rows))

	comp := logicComponents(s.Rows, rows, cols)
	res.Components = comp
	expected, step := expectedTotal(comp)
	res.ExpectedTotal = expected
	res.Steps = append(res.Steps, step)

	extracted := r.TotalPayment
	switch {
	case expected > 0:
		diff := math.Abs(extracted-expected) / expected
		switch {
		case diff <= 0.01:
			res.Status = LogicValid
		case diff <= 0.05:
			res.Status = LogicMinorDiff
			res.Issues = append(res.Issues, fmt.Sprintf("small difference: %.1f%%", diff*100))
		default:
			res.Status = LogicMismatch
			res.Issues = append(res.Issues, fmt.Sprintf("extracted: %s, expected: %s (diff: %.1f%%)",
				money(extracted), money(expected), diff*100))
		}
	case extracted == 0:
		res.Status = LogicValidZero
	default:
		res.Status = LogicCheck
		res.Issues = append(res.Issues, fmt.Sprintf("extracted: %s, expected: %s", money(extracted), money(expected)))
	}
	return res
}

// CheckLogicAll runs CheckLogic for every record against its source.
func CheckLogicAll(records []Record, src Source) []LogicResult {
	out := make([]LogicResult, 0, len(records))
	for _, r := range records {
		s, err := src.Sheet(r.SourceFile, r.SourceSheet)
		if err != nil {
			res := newLogicResult(r)
			res.Status = LogicError
			if isNotFound(err) {
				res.Status = LogicFileNotFound
			}
			res.Issues = append(res.Issues, err.Error())
			out = append(out, res)
			continue
		}
		out = append(out, CheckLogic(r, s))
	}
	return out
}

func firstRowWithIC(rows [][]string, target string) int {
	if target == "" {
		return -1
	}
	for i, row := range rows {
		if strings.Contains(clean.CompactIC(sheet.RowText(row)), target) {
			return i
		}
	}
	return -1
}

// logicCandidateRows returns the IC's row under the header plus the
// following rows that leave both name and IC blank and still carry data.
func logicCandidateRows(rows [][]string, headerIdx int, cols Columns, target string) []int {
	if cols.IC < 0 || target == "" {
		return nil
	}
	for i := headerIdx + 1; i < len(rows); i++ {
		if !strings.Contains(clean.CompactIC(sheet.Cell(rows[i], cols.IC)), target) {
			continue
		}
		out := []int{i}
		for j := i + 1; j < len(rows) && j <= i+logicContinuationRows; j++ {
			next := rows[j]
			if sheet.Cell(next, cols.Name) != "" || sheet.Cell(next, cols.IC) != "" {
				break
			}
			if !sheet.Empty(next) {
				out = append(out, j)
			}
		}
		return out
	}
	return nil
}

func logicComponents(rows [][]string, idx []int, cols Columns) LogicComponents {
	var c LogicComponents
	for _, i := range idx {
		row := rows[i]
		value := func(col int) float64 {
			if col < 0 {
				return 0
			}
			return clean.Float(sheet.Cell(row, col))
		}
		if v := value(cols.Days); v <= logicMaxDays {
			c.Days += v
		}
		c.Wages += value(cols.Wage)
		if v := value(cols.Payment); v > 0 && v < logicMaxRowPayment {
			c.Payment += v
		}
		c.OT += value(cols.OT)
		c.Allowance += value(cols.Allowance)
		c.Claim += value(cols.Claim)
		c.Transport += value(cols.Transport)
		if v := value(cols.Total); v > c.Total {
			c.Total = v
		}
	}
	c.Days, c.Wages, c.Payment = round2(c.Days), round2(c.Wages), round2(c.Payment)
	c.OT, c.Allowance, c.Claim, c.Transport = round2(c.OT), round2(c.Allowance), round2(c.Claim), round2(c.Transport)
	return c
}

func expectedTotal(c LogicComponents) (float64, string) {
	type part struct {
		label string
		v     float64
	}
	explain := func(parts []part) (float64, string) {
		var sum float64
		var terms []string
		for _, p := range parts {
			sum += p.v
			if p.v > 0 {
				terms = append(terms, p.label+": "+money(p.v))
			}
		}
		sum = round2(sum)
		return sum, strings.Join(terms, " + ") + " = " + money(sum)
	}

	switch {
	case c.Total > 0:
		return c.Total, "Total column = " + money(c.Total)
	case c.Payment > 0:
		return explain([]part{
			{"Payment", c.Payment}, {"OT", c.OT}, {"Allowance", c.Allowance},
			{"Claim", c.Claim}, {"Transport", c.Transport},
		})
	case c.Wages > 0:
		return explain([]part{{"Wages", c.Wages}, {"OT", c.OT}, {"Allowance", c.Allowance}, {"Claim", c.Claim}})
	}
	return 0, "no payment data found in columns"
}

// Found lists the roles that were matched to a column.
func (c Columns) Found() map[string]int {
	out := map[string]int{}
	for name, idx := range map[string]int{
		"name": c.Name, "ic": c.IC, "bank": c.Bank, "account": c.Account, "position": c.Position,
		"days": c.Days, "date": c.Date, "wage": c.Wage, "payment": c.Payment, "ot": c.OT,
		"transport": c.Transport, "allowance": c.Allowance, "claim": c.Claim, "total": c.Total,
	} {
		if idx >= 0 {
			out[name] = idx
		}
	}
	return out
}
