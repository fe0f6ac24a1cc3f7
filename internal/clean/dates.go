package clean

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// UnknownMonth is returned by Month when a path names no month.
const UnknownMonth = "Unknown"

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var monthToken = regexp.MustCompile(`(?:^|[^a-z])(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)(?:[^a-z]|$)`)

// Month finds the payroll month named in a file path, e.g. "Mar" for
// ".../Baito March Payment Details 2025.xlsx". The file name wins over
// directory names.
func Month(path string) string {
	candidates := []string{filepath.Base(path), path}
	for _, c := range candidates {
		m := monthToken.FindStringSubmatch(strings.ToLower(c))
		if m == nil {
			continue
		}
		return months[monthIndex(m[1])]
	}
	return UnknownMonth
}

// MonthOrder sorts month names chronologically with unknown months last.
func MonthOrder(name string) int {
	for i, m := range months {
		if strings.EqualFold(m, name) {
			return i + 1
		}
	}
	return len(months) + 1
}

func monthIndex(token string) int {
	for i, m := range months {
		if strings.HasPrefix(token, strings.ToLower(m)) {
			return i
		}
	}
	return 0
}

var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"02/01/2006",
	"2/1/06",
	"2-1-2006",
	"02-01-2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Date converts an Excel serial or a common date string to 2006-01-02.
// Malaysian sheets write day before month, so ambiguous slash dates are
// read that way. ok is false when the value is not recognisably a date.
func Date(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}

	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		// 2000-01-01 .. 2119-01-01; plain counts and years stay numbers.
		if serial >= 36526 && serial <= 80000 {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return parsed.Format("2006-01-02"), true
			}
		}
		return "", false
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, v); err == nil {
			return parsed.Format("2006-01-02"), true
		}
	}
	return "", false
}

// DateHeader reports whether a header cell is a roster day column.
func DateHeader(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if isoDate.MatchString(v) {
		return v[:10], true
	}
	if d, ok := Date(v); ok {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return d, true
		}
	}
	return "", false
}
