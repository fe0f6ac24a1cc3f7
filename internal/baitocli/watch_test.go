package baitocli

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchInboxWaitsForRunningRebuild(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		calls    atomic.Int32
		finished atomic.Bool
		started  = make(chan struct{})
		once     sync.Once
	)
	build := func(context.Context) error {
		if calls.Add(1) == 1 {
			return nil
		}
		once.Do(func() { close(started) })
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- watchInbox(ctx, dir, filepath.Join(dir, "masterlist.xlsx"), 10*time.Millisecond, zerolog.Nop(), build)
	}()

	// The watcher is registered before the first build returns, so keep
	// touching the inbox until a debounced rebuild starts.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-started:
			break wait
		case <-tick.C:
			require.NoError(t, os.WriteFile(filepath.Join(dir, "april.xlsx"), []byte("x"), 0o644))
		case <-deadline:
			t.Fatal("rebuild never started")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchInbox did not return")
	}
	assert.True(t, finished.Load(), "watchInbox returned while a rebuild was still running")
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "masterlist.xlsx")
	outAbs, err := filepath.Abs(out)
	require.NoError(t, err)

	assert.True(t, relevant(fsnotify.Event{Name: filepath.Join(dir, "april.xlsx"), Op: fsnotify.Write}, outAbs))
	assert.False(t, relevant(fsnotify.Event{Name: filepath.Join(dir, "~$april.xlsx"), Op: fsnotify.Write}, outAbs))
	assert.False(t, relevant(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Create}, outAbs))
	assert.False(t, relevant(fsnotify.Event{Name: out, Op: fsnotify.Write}, outAbs))
	assert.False(t, relevant(fsnotify.Event{Name: filepath.Join(dir, "april.xlsx"), Op: fsnotify.Chmod}, outAbs))
}
