package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

// Watcher applies the slow-query threshold of a config file to a
// telemetry context whenever the file changes. Other settings need a
// restart.
type Watcher struct {
	path    string
	tel     *sqlshadow.Telemetry
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path. The directory is watched rather than the
// file so that editors replacing the file by rename are seen.
func NewWatcher(path string, tel *sqlshadow.Telemetry, logger zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}

	return &Watcher{path: abs, tel: tel, logger: logger, watcher: fw}, nil
}

// Run applies changes until ctx is done, then closes the watcher. Files
// that fail to load are logged and leave the threshold unchanged.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error().Err(err).Str("path", w.path).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("config reload failed")
		return
	}

	next := cfg.Telemetry.SlowQueryThreshold.Duration()
	if prev := w.tel.SlowQueryThreshold(); prev == next {
		return
	}
	w.tel.SetSlowQueryThreshold(next)

	w.logger.Info().
		Str("path", w.path).
		Dur("threshold", next).
		Msg("slow query threshold reloaded")
}

// Watch is NewWatcher followed by Run.
func Watch(ctx context.Context, path string, tel *sqlshadow.Telemetry, logger zerolog.Logger) error {
	w, err := NewWatcher(path, tel, logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
