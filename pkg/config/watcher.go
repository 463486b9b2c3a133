package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cutover/cutover/pkg/telemetry"
)

// reloadDelay debounces bursts of file system events into one reparse.
const reloadDelay = 500 * time.Millisecond

// Watcher re-parses a manifest whenever its file changes on disk.
type Watcher struct {
	parser  *Parser
	logger  *telemetry.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a manifest watcher.
func NewWatcher(parser *Parser, logger *telemetry.Logger) *Watcher {
	return &Watcher{parser: parser, logger: logger}
}

// Watch parses the manifest at path now and again after every change,
// invoking onParse with each result. It blocks until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, path string, onParse func(*ParsedManifest)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = fsw
	defer fsw.Close()

	// Watch the directory so the file is still tracked across the
	// rename-and-replace dance editors do on save.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	parse := func() {
		parsed, err := w.parser.ParseFile(path)
		if err != nil {
			w.logger.WithError(err).Warn("failed to re-parse manifest")
			return
		}
		onParse(parsed)
	}
	parse()

	var reloadTimer *time.Timer
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.WithField("file", event.Name).Debug("manifest changed")
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, parse)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("watcher error")
		}
	}
}
