package uxreview

import (
	"fmt"
	"strings"
	"time"
)

// Report is the outcome of one run.
type Report struct {
	Scenario      string        `json:"scenario"`
	BaseURL       string        `json:"base_url"`
	Viewport      Viewport      `json:"viewport"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Steps         []StepResult  `json:"steps"`
	Counts        []Count       `json:"counts,omitempty"`
	Clicks        []string      `json:"clicks,omitempty"`
	Screenshots   []string      `json:"screenshots,omitempty"`
	ConsoleErrors []string      `json:"console_errors,omitempty"`
	Error         string        `json:"error,omitempty"`
}

type StepResult struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Count is the number of elements matching a labelled selector.
type Count struct {
	Label    string `json:"label"`
	Selector string `json:"selector"`
	N        int    `json:"n"`
}

func (r *Report) Failed() bool { return r.Error != "" }

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	title := r.Scenario
	if title == "" {
		title = "UX review"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if r.BaseURL != "" {
		fmt.Fprintf(&b, "- Base URL: %s\n", r.BaseURL)
	}
	fmt.Fprintf(&b, "- Viewport: %dx%d\n", r.Viewport.Width, r.Viewport.Height)
	fmt.Fprintf(&b, "- Started: %s\n", r.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", r.Duration.Round(time.Millisecond))
	if r.Failed() {
		fmt.Fprintf(&b, "- Result: FAILED (%s)\n", r.Error)
	} else {
		b.WriteString("- Result: passed\n")
	}

	b.WriteString("\n## Steps\n\n| # | Action | Detail | Result |\n|---|---|---|---|\n")
	for _, s := range r.Steps {
		result := "ok"
		if s.Err != "" {
			result = "error: " + s.Err
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", s.Index, s.Action, cell(s.Detail), cell(result))
	}

	if len(r.Counts) > 0 {
		b.WriteString("\n## Element counts\n\n| Element | Selector | Count |\n|---|---|---|\n")
		total := 0
		for _, c := range r.Counts {
			fmt.Fprintf(&b, "| %s | `%s` | %d |\n", c.Label, cell(c.Selector), c.N)
			total += c.N
		}
		fmt.Fprintf(&b, "| **Total** | | %d |\n", total)
	}

	b.WriteString("\n## Clicks\n\n")
	list(&b, r.Clicks, func(s string) string { return "`" + s + "`" })

	b.WriteString("\n## Console errors\n\n")
	list(&b, r.ConsoleErrors, func(s string) string { return s })

	b.WriteString("\n## Screenshots\n\n")
	list(&b, r.Screenshots, func(s string) string { return fmt.Sprintf("![%s](%s)", strings.TrimSuffix(s, ".png"), s) })
	return b.String()
}

func list(b *strings.Builder, items []string, format func(string) string) {
	if len(items) == 0 {
		b.WriteString("None\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", format(it))
	}
}

// cell keeps a value from breaking a markdown table row.
func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
