// Package clean normalises the free-form values found in payroll sheets:
// IC numbers, names, bank accounts, phone numbers, money and dates.
package clean

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const minICLength = 6

var (
	parenGroup     = regexp.MustCompile(`\([^)]*\)`)
	firstParen     = regexp.MustCompile(`\(([^)]+)\)`)
	unsafeFileChar = regexp.MustCompile(`[<>:"/\\|?*]`)
	underscoreRun  = regexp.MustCompile(`_+`)
	phoneNoise     = regexp.MustCompile(`[ \-()]`)
)

// ICNumber returns the IC with separators removed. Annotations after a
// newline or an opening parenthesis are dropped. Values shorter than six
// characters are not ICs and yield "".
func ICNumber(v string) string {
	s := strings.TrimSpace(v)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if n, ok := integerString(s); ok {
		s = n
	}
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	if len(s) < minICLength {
		return ""
	}
	return s
}

// CompactIC strips spaces, hyphens and a float suffix without enforcing a
// minimum length. It is used when searching raw sheet text for an IC.
func CompactIC(v string) string {
	s := strings.TrimSpace(v)
	if n, ok := integerString(s); ok {
		s = n
	}
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// Name collapses whitespace, drops parenthesised nicknames and title-cases
// every word.
func Name(v string) string {
	s := strings.Join(strings.Fields(v), " ")
	s = parenGroup.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

// AlternateName is the title-cased text of the first parenthesised group,
// e.g. the "Ah Meng" in "Tan Wei Ming (Ah Meng)".
func AlternateName(v string) string {
	m := firstParen.FindStringSubmatch(v)
	if m == nil {
		return ""
	}
	alt := strings.Join(strings.Fields(m[1]), " ")
	if alt == "" {
		return ""
	}
	return cases.Title(language.Und).String(alt)
}

// BankName trims the value.
func BankName(v string) string {
	return strings.TrimSpace(v)
}

// ClaimBank reports whether a bank cell is actually a claim marker rather
// than a bank.
func ClaimBank(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "sammy claim", "claim":
		return true
	default:
		return false
	}
}

// Account returns a digits-only account number. Spreadsheet artefacts such
// as "1.62012345678e+11" and "162012345678.0" are expanded first.
func Account(v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if n, ok := integerString(s); ok {
		s = n
	}
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	s = strings.ReplaceAll(s, ".0", "")
	s = strings.ReplaceAll(s, ".", "")
	if s == "" || !allDigits(s) {
		return ""
	}
	return s
}

// Phone normalises a Malaysian phone number to +60 form.
func Phone(v string) string {
	s := phoneNoise.ReplaceAllString(strings.TrimSpace(v), "")
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "+") {
		s = "+60" + strings.TrimPrefix(s, "0")
	}
	return s
}

// Float parses a money or count cell. Blank and unparseable values are 0.
func Float(v string) float64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0
	}
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "RM") {
		s = strings.TrimSpace(s[2:])
	}
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FileName makes a sheet name safe to use in a file name.
func FileName(v string) string {
	s := unsafeFileChar.ReplaceAllString(v, "_")
	s = strings.Trim(s, ". ")
	return underscoreRun.ReplaceAllString(s, "_")
}

func integerString(s string) (string, bool) {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "e") && !strings.Contains(lower, ".") {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', 0, 64), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
