package uxreview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoMatch is returned by a required click-first step when none of its
// selectors match.
var ErrNoMatch = errors.New("no selector matched")

// Page is the browser surface a scenario needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	// ClickFirst clicks the first element of the first selector that
	// matches and returns that selector, or "" when nothing matched.
	ClickFirst(ctx context.Context, selectors []string) (string, error)
	Press(ctx context.Context, key string) error
	Count(ctx context.Context, selector string) (int, error)
	Scroll(ctx context.Context, selector, position string) error
	ConsoleErrors() []string
}

// Run executes sc against page, writing screenshots and report.md into
// outDir. A failing step captures error.png and ends the run; the partial
// report is still written and returned with the error.
func Run(ctx context.Context, sc *Scenario, page Page, outDir string, log zerolog.Logger) (*Report, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	rep := &Report{Scenario: sc.Name, BaseURL: sc.BaseURL, Viewport: sc.Viewport, Started: time.Now()}
	shots := 0

	var runErr error
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res := StepResult{Index: i + 1, Action: st.Action}
		detail, err := runStep(ctx, sc, st, page, outDir, rep, &shots)
		res.Detail = detail
		if err != nil {
			res.Err = err.Error()
			rep.Steps = append(rep.Steps, res)
			log.Error().Err(err).Int("step", i+1).Str("action", st.Action).Msg("step failed")
			runErr = fmt.Errorf("step %d (%s): %w", i+1, st.Action, err)
			captureError(ctx, page, outDir, rep, log)
			break
		}
		rep.Steps = append(rep.Steps, res)
		log.Info().Int("step", i+1).Str("action", st.Action).Str("detail", detail).Msg("step done")
	}

	rep.ConsoleErrors = page.ConsoleErrors()
	rep.Duration = time.Since(rep.Started)
	if runErr != nil {
		rep.Error = runErr.Error()
	}
	path := filepath.Join(outDir, "report.md")
	if err := os.WriteFile(path, []byte(rep.Markdown()), 0o644); err != nil {
		return rep, errors.Join(runErr, fmt.Errorf("write report: %w", err))
	}
	log.Info().Str("report", path).Int("screenshots", len(rep.Screenshots)).Msg("review written")
	return rep, runErr
}

func runStep(ctx context.Context, sc *Scenario, st Step, page Page, outDir string, rep *Report, shots *int) (string, error) {
	switch st.Action {
	case ActionGoto:
		url := sc.resolve(st.URL)
		return url, page.Navigate(ctx, url)

	case ActionWait:
		t := time.NewTimer(st.Duration)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return st.Duration.String(), ctx.Err()
		case <-t.C:
			return st.Duration.String(), nil
		}

	case ActionScreenshot:
		*shots++
		name := st.Name
		if name == "" {
			name = fmt.Sprintf("%02d-screenshot", *shots)
		}
		file := name + ".png"
		data, err := page.Screenshot(ctx, st.FullPage)
		if err != nil {
			return file, err
		}
		if err := os.WriteFile(filepath.Join(outDir, file), data, 0o644); err != nil {
			return file, err
		}
		rep.Screenshots = append(rep.Screenshots, file)
		return file, nil

	case ActionClickFirst:
		sel, err := page.ClickFirst(ctx, st.Selectors)
		if err != nil {
			return sel, err
		}
		if sel == "" {
			if st.Optional {
				return "nothing matched", nil
			}
			return "", fmt.Errorf("%w: %s", ErrNoMatch, strings.Join(st.Selectors, ", "))
		}
		rep.Clicks = append(rep.Clicks, sel)
		return sel, nil

	case ActionPress:
		return st.Key, page.Press(ctx, st.Key)

	case ActionCount:
		labels := make([]string, 0, len(st.Counts))
		for label := range st.Counts {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		total := 0
		for _, label := range labels {
			n, err := page.Count(ctx, st.Counts[label])
			if err != nil {
				return label, err
			}
			total += n
			rep.Counts = append(rep.Counts, Count{Label: label, Selector: st.Counts[label], N: n})
		}
		return fmt.Sprintf("%d elements", total), nil

	case ActionScroll:
		target := st.Selector
		if target == "" {
			target = "window"
		}
		return target + " to " + st.Position, page.Scroll(ctx, st.Selector, st.Position)
	}
	return "", fmt.Errorf("unknown action %q", st.Action)
}

func captureError(ctx context.Context, page Page, outDir string, rep *Report, log zerolog.Logger) {
	data, err := page.Screenshot(ctx, true)
	if err == nil {
		err = os.WriteFile(filepath.Join(outDir, "error.png"), data, 0o644)
	}
	if err != nil {
		log.Warn().Err(err).Msg("error screenshot not captured")
		return
	}
	rep.Screenshots = append(rep.Screenshots, "error.png")
}
