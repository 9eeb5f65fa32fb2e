package auth

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a token file into a Source whenever it changes.
type FileWatcher struct {
	path      string
	subjectID string
	source    *Source
	logger    *slog.Logger
}

// NewFileWatcher creates a watcher for the token file at path.
func NewFileWatcher(path, subjectID string, source *Source, logger *slog.Logger) *FileWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		path:      filepath.Clean(path),
		subjectID: subjectID,
		source:    source,
		logger:    logger.With("token_path", path),
	}
}

// Reload reads the token file and publishes it to the source.
// A missing or empty file leaves the current credentials untouched.
func (w *FileWatcher) Reload() error {
	token, err := ReadToken(w.path)
	if err != nil {
		return err
	}
	w.source.Set(&Credentials{Token: token, SubjectID: w.subjectID})
	return nil
}

// Run watches the token file until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// atomic replace-by-rename keeps being observed.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create token watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching token file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.Warn("token reload failed", "error", err)
				continue
			}
			w.logger.Debug("token file reloaded", "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("token watcher error", "error", err)
		}
	}
}
