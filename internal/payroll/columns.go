package payroll

import (
	"strings"

	"github.com/baito-events/baitokit/internal/clean"
	"github.com/baito-events/baitokit/internal/sheet"
)

// Columns maps payroll roles to column indexes within a section. -1 means
// the section has no such column.
type Columns struct {
	Name      int `json:"name"`
	IC        int `json:"ic"`
	Bank      int `json:"bank"`
	Account   int `json:"account"`
	Position  int `json:"position"`
	Days      int `json:"days"`
	Date      int `json:"date"`
	Wage      int `json:"wage"`
	Payment   int `json:"payment"`
	OT        int `json:"ot"`
	Transport int `json:"transport"`
	Allowance int `json:"allowance"`
	Claim     int `json:"claim"`
	Total     int `json:"total"`

	// Roster holds day columns whose header is a date, keyed by column.
	Roster map[int]string `json:"roster,omitempty"`
}

type columnRule struct {
	slot  func(*Columns) *int
	match func(header string) bool
}

func equalsAny(values ...string) func(string) bool {
	return func(h string) bool {
		for _, v := range values {
			if h == v {
				return true
			}
		}
		return false
	}
}

func contains(sub string) func(string) bool {
	return func(h string) bool { return strings.Contains(h, sub) }
}

// Rules are tried in order for every header; the first rule whose role is
// still unassigned and whose predicate matches claims the column.
var columnRules = []columnRule{
	{func(c *Columns) *int { return &c.Name }, func(h string) bool {
		return strings.Contains(h, "name") && !strings.Contains(h, "bank")
	}},
	{func(c *Columns) *int { return &c.IC }, contains("ic")},
	{func(c *Columns) *int { return &c.Bank }, func(h string) bool {
		return strings.Contains(h, "bank name") || h == "bank"
	}},
	{func(c *Columns) *int { return &c.Account }, contains("account")},
	{func(c *Columns) *int { return &c.Position }, equalsAny("position", "role")},
	{func(c *Columns) *int { return &c.Days }, equalsAny("day", "days")},
	{func(c *Columns) *int { return &c.Date }, equalsAny("date")},
	{func(c *Columns) *int { return &c.Wage }, equalsAny("wage", "wages", "salary")},
	{func(c *Columns) *int { return &c.Payment }, equalsAny("payment")},
	{func(c *Columns) *int { return &c.OT }, equalsAny("ot", "overtime")},
	{func(c *Columns) *int { return &c.Transport }, equalsAny("transport", "transportation")},
	{func(c *Columns) *int { return &c.Allowance }, contains("allowance")},
	{func(c *Columns) *int { return &c.Claim }, equalsAny("claim", "claims")},
	{func(c *Columns) *int { return &c.Total }, equalsAny("total", "total wages", "total payment")},
}

func noColumns() Columns {
	return Columns{
		Name: -1, IC: -1, Bank: -1, Account: -1, Position: -1, Days: -1, Date: -1,
		Wage: -1, Payment: -1, OT: -1, Transport: -1, Allowance: -1, Claim: -1, Total: -1,
	}
}

// IdentifyColumns assigns roles to the cells of a header row.
func IdentifyColumns(header []string) Columns {
	cols := noColumns()
	for i, raw := range header {
		h := normalizeHeader(raw)
		if h == "" {
			continue
		}
		matched := false
		for _, rule := range columnRules {
			slot := rule.slot(&cols)
			if *slot >= 0 || !rule.match(h) {
				continue
			}
			*slot = i
			matched = true
			break
		}
		if matched {
			continue
		}
		if day, ok := clean.DateHeader(raw); ok {
			if cols.Roster == nil {
				cols.Roster = map[int]string{}
			}
			cols.Roster[i] = day
		}
	}
	return cols
}

// Usable reports whether the section can yield candidates at all.
func (c Columns) Usable() bool {
	return c.Name >= 0 && c.IC >= 0
}

// HasPayment reports whether any money column was found.
func (c Columns) HasPayment() bool {
	return c.Wage >= 0 || c.Payment >= 0 || c.Total >= 0 || c.OT >= 0 ||
		c.Allowance >= 0 || c.Transport >= 0 || c.Claim >= 0
}

// IsHeaderRow reports whether a row looks like a sub-table header: its text
// mentions both a name and an IC.
func IsHeaderRow(row []string) bool {
	text := strings.ToLower(sheet.RowText(row))
	return strings.Contains(text, "name") && strings.Contains(text, "ic")
}

// HeaderRows returns the indexes of every header row in a sheet.
func HeaderRows(rows [][]string) []int {
	var out []int
	for i, row := range rows {
		if IsHeaderRow(row) {
			out = append(out, i)
		}
	}
	return out
}

// Section is one logical sub-table: a header row and the data rows up to
// the next header row.
type Section struct {
	HeaderRow int
	Header    []string
	// Start and End bound the data rows as a half-open range of sheet rows.
	Start, End int
	Columns    Columns
}

// Sections splits a sheet at its header rows. Sections never overlap.
func Sections(rows [][]string) []Section {
	headers := HeaderRows(rows)
	sections := make([]Section, 0, len(headers))
	for i, h := range headers {
		end := len(rows)
		if i+1 < len(headers) {
			end = headers[i+1]
		}
		sections = append(sections, Section{
			HeaderRow: h,
			Header:    rows[h],
			Start:     h + 1,
			End:       end,
			Columns:   IdentifyColumns(rows[h]),
		})
	}
	return sections
}

// nearestHeader looks at most window rows above row for a header row.
func nearestHeader(rows [][]string, row, window int) (int, bool) {
	for i := row - 1; i >= 0 && i >= row-window; i-- {
		if IsHeaderRow(rows[i]) {
			return i, true
		}
	}
	return 0, false
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(header), " "))
}
