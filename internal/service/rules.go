package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/olegrjumin/cookieguard/internal/consent"
	"github.com/olegrjumin/cookieguard/internal/logging"
)

// reloadDebounce collapses the burst of events an editor save produces
const reloadDebounce = 200 * time.Millisecond

// WatchRules reloads the rules file into svc whenever it changes, until ctx
// is done. An invalid file is logged and the previous rules stay active.
func WatchRules(ctx context.Context, svc *Service, path string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With("component", "rules_watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files on save, so watch the directory
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	logger.Info("Rules watcher started", "path", abs)

	reload := func() {
		rules, err := consent.LoadRules(abs)
		if err != nil {
			logger.Error("Rules reload failed", "path", abs, "error", err)
			return
		}
		svc.SetRules(rules)
		logger.Info("Rules reloaded", "path", abs)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("Rules watcher error", "error", err)
		}
	}
}
