package uxreview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addProject = `
name: Add project flow
base_url: http://localhost:5173
steps:
  - action: goto
    url: /projects
  - action: wait
    duration: 10ms
  - action: press
    key: Escape
  - action: screenshot
    name: projects
    full_page: true
  - action: click-first
    selectors:
      - button.fixed.bottom-6.right-6
      - button[aria-label*="add" i]
  - action: count
    counts:
      text_inputs: input[type="text"]
      selects: select
  - action: scroll
    selector: '[role="dialog"] > div'
    position: bottom
  - action: screenshot
`

type fakePage struct {
	visited  []string
	matching map[string]int
	pressed  []string
	scrolled []string
	failOn   string
	console  []string
}

func (f *fakePage) Navigate(_ context.Context, url string) error {
	if f.failOn == "goto" {
		return errors.New("net::ERR_CONNECTION_REFUSED")
	}
	f.visited = append(f.visited, url)
	return nil
}

func (f *fakePage) Screenshot(context.Context, bool) ([]byte, error) {
	return []byte("png"), nil
}

func (f *fakePage) ClickFirst(_ context.Context, selectors []string) (string, error) {
	for _, s := range selectors {
		if f.matching[s] > 0 {
			return s, nil
		}
	}
	return "", nil
}

func (f *fakePage) Press(_ context.Context, key string) error {
	f.pressed = append(f.pressed, key)
	return nil
}

func (f *fakePage) Count(_ context.Context, selector string) (int, error) {
	return f.matching[selector], nil
}

func (f *fakePage) Scroll(_ context.Context, selector, position string) error {
	f.scrolled = append(f.scrolled, selector+":"+position)
	return nil
}

func (f *fakePage) ConsoleErrors() []string { return f.console }

func TestParse(t *testing.T) {
	sc, err := Parse(strings.NewReader(addProject))
	require.NoError(t, err)

	assert.Equal(t, "Add project flow", sc.Name)
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, sc.Viewport)
	require.Len(t, sc.Steps, 8)
	assert.Equal(t, 10*time.Millisecond, sc.Steps[1].Duration)
	assert.Equal(t, []string{"button.fixed.bottom-6.right-6", `button[aria-label*="add" i]`}, sc.Steps[4].Selectors)
	assert.Equal(t, "select", sc.Steps[5].Counts["selects"])
	assert.Equal(t, "http://localhost:5173/projects", sc.resolve(sc.Steps[0].URL))
	assert.Equal(t, "https://example.com/x", sc.resolve("https://example.com/x"))
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"no steps":       "name: x\n",
		"unknown action": "steps:\n  - action: hover\n",
		"unknown field":  "steps:\n  - action: goto\n    url: http://x\n    colour: red\n",
		"relative goto":  "steps:\n  - action: goto\n    url: /projects\n",
		"bad key":        "steps:\n  - action: press\n    key: F13\n",
		"bad position":   "steps:\n  - action: scroll\n    position: left\n",
		"zero wait":      "steps:\n  - action: wait\n",
		"no selectors":   "steps:\n  - action: click-first\n",
		"path in name":   "steps:\n  - action: screenshot\n    name: ../x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestRun(t *testing.T) {
	sc, err := Parse(strings.NewReader(addProject))
	require.NoError(t, err)
	out := t.TempDir()
	page := &fakePage{
		matching: map[string]int{`button[aria-label*="add" i]`: 1, `input[type="text"]`: 6, "select": 2},
		console:  []string{"TypeError: x is undefined"},
	}

	rep, err := Run(context.Background(), sc, page, out, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:5173/projects"}, page.visited)
	assert.Equal(t, []string{"Escape"}, page.pressed)
	assert.Equal(t, []string{`[role="dialog"] > div:bottom`}, page.scrolled)
	assert.Equal(t, []string{`button[aria-label*="add" i]`}, rep.Clicks)
	assert.Equal(t, []Count{
		{Label: "selects", Selector: "select", N: 2},
		{Label: "text_inputs", Selector: `input[type="text"]`, N: 6},
	}, rep.Counts)
	assert.Equal(t, []string{"projects.png", "02-screenshot.png"}, rep.Screenshots)
	assert.False(t, rep.Failed())
	assert.Len(t, rep.Steps, 8)

	for _, name := range []string{"projects.png", "02-screenshot.png", "report.md"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	md, err := os.ReadFile(filepath.Join(out, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Add project flow")
	assert.Contains(t, string(md), "- Result: passed")
	assert.Contains(t, string(md), "| **Total** | | 8 |")
	assert.Contains(t, string(md), "- TypeError: x is undefined")
	assert.Contains(t, string(md), "![projects](projects.png)")
}

func TestRunStopsOnFailure(t *testing.T) {
	sc, err := Parse(strings.NewReader(addProject))
	require.NoError(t, err)
	out := t.TempDir()

	rep, err := Run(context.Background(), sc, &fakePage{failOn: "goto"}, out, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (goto)")

	require.Len(t, rep.Steps, 1)
	assert.Contains(t, rep.Steps[0].Err, "ERR_CONNECTION_REFUSED")
	assert.Equal(t, []string{"error.png"}, rep.Screenshots)
	assert.FileExists(t, filepath.Join(out, "error.png"))

	md, err := os.ReadFile(filepath.Join(out, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "- Result: FAILED")
}

func TestRunRequiredClickWithoutMatch(t *testing.T) {
	sc := &Scenario{Steps: []Step{{Action: ActionClickFirst, Selectors: []string{"#missing"}}}}
	_, err := Run(context.Background(), sc, &fakePage{}, t.TempDir(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoMatch)

	sc.Steps[0].Optional = true
	rep, err := Run(context.Background(), sc, &fakePage{}, t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, rep.Clicks)
	assert.Equal(t, "nothing matched", rep.Steps[0].Detail)
}

func TestMarkdownEscapesTableCells(t *testing.T) {
	rep := &Report{Steps: []StepResult{{Index: 1, Action: "count", Detail: "a|b"}}}
	md := rep.Markdown()
	assert.Contains(t, md, "# UX review")
	assert.Contains(t, md, `a\|b`)
	assert.Contains(t, md, "## Clicks\n\nNone\n")
}
