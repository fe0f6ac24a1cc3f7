package uxreview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var keyNames = map[string]input.Key{
	"Escape":     input.Escape,
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Space":      input.Space,
	"Backspace":  input.Backspace,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageDown":   input.PageDown,
	"PageUp":     input.PageUp,
}

// BrowserOptions configures Launch.
type BrowserOptions struct {
	Headless bool
	// Bin is the Chrome binary; empty lets the launcher find or fetch one.
	Bin string
	// ControlURL connects to an already running browser instead.
	ControlURL string
	Timeout    time.Duration
}

// Browser is a rod-backed Page.
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration

	mu      sync.Mutex
	console []string
}

// Launch starts (or connects to) Chrome and opens one page sized to vp.
func Launch(ctx context.Context, vp Viewport, opts BrowserOptions) (*Browser, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	b := &Browser{browser: browser, page: page, timeout: opts.Timeout}
	wait := page.Context(ctx).EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		if ev.Type != proto.RuntimeConsoleAPICalledTypeError {
			return
		}
		b.mu.Lock()
		b.console = append(b.console, consoleText(ev.Args))
		b.mu.Unlock()
	}, func(ev *proto.RuntimeExceptionThrown) {
		b.mu.Lock()
		b.console = append(b.console, ev.ExceptionDetails.Text)
		b.mu.Unlock()
	})
	go wait()
	return b, nil
}

func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	if b == nil || b.browser == nil {
		return nil
	}
	return b.browser.Close()
}

func (b *Browser) p(ctx context.Context) *rod.Page {
	return b.page.Context(ctx).Timeout(b.timeout)
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	p := b.p(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (b *Browser) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return b.p(ctx).Screenshot(fullPage, nil)
}

func (b *Browser) ClickFirst(ctx context.Context, selectors []string) (string, error) {
	p := b.p(ctx)
	for _, sel := range selectors {
		els, err := p.Elements(sel)
		if err != nil {
			return "", fmt.Errorf("query %q: %w", sel, err)
		}
		if els.Empty() {
			continue
		}
		if err := els.First().Click(proto.InputMouseButtonLeft, 1); err != nil {
			return sel, fmt.Errorf("click %q: %w", sel, err)
		}
		return sel, nil
	}
	return "", nil
}

func (b *Browser) Press(ctx context.Context, key string) error {
	k, ok := keyNames[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return b.p(ctx).Keyboard.Press(k)
}

func (b *Browser) Count(ctx context.Context, selector string) (int, error) {
	els, err := b.p(ctx).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (b *Browser) Scroll(ctx context.Context, selector, position string) error {
	p := b.p(ctx)
	if selector == "" {
		_, err := p.Eval(`(pos) => {
			const h = document.documentElement.scrollHeight;
			window.scrollTo(0, pos === 'top' ? 0 : pos === 'middle' ? h / 2 : h);
		}`, position)
		return err
	}
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	_, err = el.Eval(`(pos) => {
		this.scrollTop = pos === 'top' ? 0 : pos === 'middle' ? this.scrollHeight / 2 : this.scrollHeight;
	}`, position)
	return err
}

func (b *Browser) ConsoleErrors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.console...)
}
