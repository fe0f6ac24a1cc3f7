// Package uxreview drives a browser through a scripted walkthrough of the
// staffing web app and writes a markdown report with screenshots, element
// counts and console errors.
package uxreview

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionGoto       = "goto"
	ActionWait       = "wait"
	ActionScreenshot = "screenshot"
	ActionClickFirst = "click-first"
	ActionPress      = "press"
	ActionCount      = "count"
	ActionScroll     = "scroll"
)

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a scripted review loaded from YAML.
type Scenario struct {
	Name     string   `yaml:"name"`
	BaseURL  string   `yaml:"base_url"`
	Viewport Viewport `yaml:"viewport"`
	Steps    []Step   `yaml:"steps"`
}

type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Step is one action. Only the fields its action uses are read.
type Step struct {
	Action string `yaml:"action"`

	// goto: absolute URL or a path joined to the base URL.
	URL string `yaml:"url,omitempty"`
	// wait
	Duration time.Duration `yaml:"duration,omitempty"`
	// screenshot: file name without extension.
	Name     string `yaml:"name,omitempty"`
	FullPage bool   `yaml:"full_page,omitempty"`
	// click-first: tried in order, the first with a match is clicked.
	Selectors []string `yaml:"selectors,omitempty"`
	// press
	Key string `yaml:"key,omitempty"`
	// count: label to selector.
	Counts map[string]string `yaml:"counts,omitempty"`
	// scroll: element to scroll, the window when empty. Position is top,
	// middle or bottom.
	Selector string `yaml:"selector,omitempty"`
	Position string `yaml:"position,omitempty"`
	// Optional marks a click-first step that may find nothing.
	Optional bool `yaml:"optional,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if sc.Viewport.Width <= 0 {
		sc.Viewport.Width = 1920
	}
	if sc.Viewport.Height <= 0 {
		sc.Viewport.Height = 1080
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every step carries what its action needs.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInvalidScenario, i+1, st.Action, err)
		}
		if st.Action == ActionGoto && !isAbsolute(st.URL) && sc.BaseURL == "" {
			return fmt.Errorf("%w: step %d (goto): relative url %q needs base_url", ErrInvalidScenario, i+1, st.URL)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Action {
	case ActionGoto:
		if strings.TrimSpace(st.URL) == "" {
			return errors.New("url is required")
		}
	case ActionWait:
		if st.Duration <= 0 {
			return errors.New("duration must be positive")
		}
	case ActionScreenshot:
		if strings.ContainsAny(st.Name, `/\`) {
			return errors.New("name must not contain path separators")
		}
	case ActionClickFirst:
		if len(st.Selectors) == 0 {
			return errors.New("selectors are required")
		}
	case ActionPress:
		if _, ok := keyNames[st.Key]; !ok {
			return fmt.Errorf("unsupported key %q", st.Key)
		}
	case ActionCount:
		if len(st.Counts) == 0 {
			return errors.New("counts are required")
		}
	case ActionScroll:
		switch st.Position {
		case "top", "middle", "bottom":
		default:
			return fmt.Errorf("position %q must be top, middle or bottom", st.Position)
		}
	case "":
		return errors.New("action is required")
	default:
		return errors.New("unknown action")
	}
	return nil
}

// resolve joins a relative goto target to the base URL.
func (sc *Scenario) resolve(target string) string {
	if isAbsolute(target) {
		return target
	}
	return strings.TrimRight(sc.BaseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
