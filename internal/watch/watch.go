// Package watch re-runs a clean pass whenever the config file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the file must stay quiet before a pass runs.
const DefaultDebounce = 2 * time.Second

// PassFunc performs one clean pass.
type PassFunc func(ctx context.Context) error

// Watcher watches a single file through its parent directory, so editors
// and atomic writers that replace the file by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	pass     PassFunc
	logger   *slog.Logger
	// onPass, when set, observes the result of every pass.
	onPass func(err error)
}

// New returns a Watcher for the file at path. A non-positive debounce uses
// DefaultDebounce.
func New(path string, debounce time.Duration, pass PassFunc, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, debounce: debounce, pass: pass, logger: logger}
}

// Run performs an initial pass, then one pass per burst of changes to the
// file, until ctx is cancelled. Pass errors are logged and watching goes on.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("watch: resolve path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: new watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(abs)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	w.logger.Info("watcher: started", slog.String("path", abs), slog.Duration("debounce", w.debounce))

	w.runPass(ctx)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.runPass(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("watcher: change", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) runPass(ctx context.Context) {
	err := w.pass(ctx)
	if err != nil {
		w.logger.Warn("watcher: clean pass failed", slog.String("error", err.Error()))
	}
	if w.onPass != nil {
		w.onPass(err)
	}
}
