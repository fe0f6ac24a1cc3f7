package payroll

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/baito-events/baitokit/internal/clean"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// AuditIssue is a data-quality problem found in an extracted record.
type AuditIssue struct {
	Index        int      `json:"index"`
	Code         string   `json:"code"`
	Severity     Severity `json:"severity"`
	Description  string   `json:"description"`
	SuggestedFix string   `json:"suggested_fix"`
	Candidate    string   `json:"candidate"`
	IC           string   `json:"ic"`
	Project      string   `json:"project"`
}

// AuditReport groups issues the way the audit command prints them.
type AuditReport struct {
	Records    int            `json:"records"`
	Issues     []AuditIssue   `json:"issues"`
	ByCode     map[string]int `json:"by_code"`
	BySeverity map[string]int `json:"by_severity"`
}

// Audit runs the data-quality rules over a masterlist. Index is the
// record's position in records.
func Audit(records []Record) AuditReport {
	report := AuditReport{
		Records:    len(records),
		ByCode:     map[string]int{},
		BySeverity: map[string]int{},
	}
	for i, r := range records {
		for _, issue := range auditRecord(r) {
			issue.Index = i
			issue.Candidate = r.FullName
			issue.IC = r.ICNumber
			issue.Project = r.ProjectName
			report.Issues = append(report.Issues, issue)
			report.ByCode[issue.Code]++
			report.BySeverity[string(issue.Severity)]++
		}
	}
	return report
}

func auditRecord(r Record) []AuditIssue {
	var issues []AuditIssue
	add := func(code string, sev Severity, desc, fix string) {
		issues = append(issues, AuditIssue{Code: code, Severity: sev, Description: desc, SuggestedFix: fix})
	}

	sum := round2(r.ComponentSum())
	if r.TotalPayment == 0 && sum > 0 {
		add("ZERO_PAYMENT_WITH_COMPONENTS", SeverityHigh,
			fmt.Sprintf("total_payment=0 but components sum to %s", money(sum)), money(sum))
	}
	if r.DaysWorked == 0 && r.TotalPayment > 0 {
		add("PAYMENT_WITHOUT_DAYS", SeverityMedium,
			fmt.Sprintf("days_worked=0 but payment=%s", money(r.TotalPayment)), "check the source sheet for days")
	}
	if r.BankName != "" && r.AccountNumber == "" && !clean.ClaimBank(r.BankName) {
		add("MISSING_ACCOUNT", SeverityHigh,
			fmt.Sprintf("has bank %q but no account number", r.BankName), "cross-reference with the source sheet")
	}
	if r.TotalPayment > 0 && sum > r.TotalPayment {
		add("TOTAL_LESS_THAN_COMPONENTS", SeverityMedium,
			fmt.Sprintf("total_payment=%s < components=%s", money(r.TotalPayment), money(sum)), money(sum))
	}
	if r.ICNumber != "" && !plausibleIC(r.ICNumber) {
		add("INVALID_IC", SeverityHigh, fmt.Sprintf("IC number %q looks invalid", r.ICNumber), "manual review required")
	}
	if r.TotalPayment == 0 && r.TotalWages == 0 && r.TotalOT == 0 && r.TotalAllowance == 0 && r.TotalClaim == 0 {
		add("ALL_PAYMENTS_ZERO", SeverityHigh, "all payment fields are 0", "cross-reference with the source sheet")
	}
	return issues
}

func plausibleIC(ic string) bool {
	return len(ic) >= 6 && strings.IndexFunc(ic, unicode.IsDigit) >= 0
}
