package baitocli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/baito-events/baitokit/internal/sheet"
)

// watchInbox runs build once, then again after every burst of workbook
// writes in dir. Changes to out itself are ignored. It returns when ctx is
// done and no rebuild is in progress.
func watchInbox(ctx context.Context, dir, out string, debounce time.Duration, log zerolog.Logger, build func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	outAbs, _ := filepath.Abs(out)
	var (
		mu      sync.Mutex
		timer   *time.Timer
		running sync.Mutex
	)
	rebuild := func() {
		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}
		if err := build(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("rebuild failed")
		}
	}

	log.Info().Str("inbox", dir).Msg("watching for workbooks")
	rebuild()

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			// Let a rebuild that is already writing finish.
			running.Lock()
			defer running.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, outAbs) {
				continue
			}
			log.Debug().Str("file", filepath.Base(event.Name)).Str("op", event.Op.String()).Msg("inbox changed")
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, rebuild)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func relevant(event fsnotify.Event, outAbs string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, "~$") || !sheet.Supported(name) {
		return false
	}
	abs, _ := filepath.Abs(event.Name)
	return abs != outAbs
}
