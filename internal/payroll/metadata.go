package payroll

import (
	"regexp"
	"strings"

	"github.com/baito-events/baitokit/internal/sheet"
)

const metadataRows = 10

var (
	metaDate     = regexp.MustCompile(`(?i)date\s*:\s*(.+?)(?:\s{2,}|payment|time\s*:|$)`)
	metaPayment  = regexp.MustCompile(`(?i)payment\s+(?:by|due(?:\s+date)?|date)\s*:?\s*(.+?)(?:\s{2,}|$)`)
	metaLocation = regexp.MustCompile(`(?i)(?:location|venue)\s*:\s*(.+?)(?:\s{2,}|$)`)
	metaTime     = regexp.MustCompile(`(?i)time\s*:\s*(.+?)(?:\s{2,}|payment|$)`)
)

// ScanMetadata reads the project banner above the first table. Cells are
// joined with a double space so each label's value stops at its cell.
func ScanMetadata(rows [][]string) ProjectMetadata {
	var meta ProjectMetadata
	for i := 0; i < len(rows) && i < metadataRows; i++ {
		if IsHeaderRow(rows[i]) {
			continue
		}
		text := sheet.RowTextSep(rows[i], "  ")
		if text == "" {
			continue
		}
		if meta.ProjectDateRange == "" {
			meta.ProjectDateRange = projectDate(text)
		}
		if meta.PaymentDueDate == "" {
			meta.PaymentDueDate = capture(metaPayment, text)
		}
		if meta.Location == "" {
			meta.Location = capture(metaLocation, text)
		}
		if meta.TimeSchedule == "" {
			meta.TimeSchedule = capture(metaTime, text)
		}
	}
	return meta
}

// projectDate finds a "Date:" label that is not part of "Payment date:".
func projectDate(text string) string {
	for _, loc := range metaDate.FindAllStringSubmatchIndex(text, -1) {
		before := strings.ToLower(strings.TrimSpace(text[:loc[0]]))
		if strings.HasSuffix(before, "payment") || strings.HasSuffix(before, "due") {
			continue
		}
		return tidy(text[loc[2]:loc[3]])
	}
	return ""
}

func capture(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return tidy(m[1])
}

func tidy(v string) string {
	return strings.Trim(strings.TrimSpace(v), ",")
}
