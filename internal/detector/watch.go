package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultReloadDebounce groups bursts of writes to the same model file.
const DefaultReloadDebounce = 500 * time.Millisecond

// ModelWatcher reloads model adapters when their files change on disk.
type ModelWatcher struct {
	watcher  *fsnotify.Watcher
	targets  map[string]Reloader
	logger   logrus.FieldLogger
	debounce time.Duration
}

// NewModelWatcher watches the directory of every path in targets. Paths are
// compared after filepath.Clean.
func NewModelWatcher(targets map[string]Reloader, logger logrus.FieldLogger) (*ModelWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create model watcher: %w", err)
	}

	cleaned := make(map[string]Reloader, len(targets))
	dirs := make(map[string]bool)
	for path, r := range targets {
		p := filepath.Clean(path)
		cleaned[p] = r
		dirs[filepath.Dir(p)] = true
	}

	// Watch directories, not files: editors and copy tools replace files by rename.
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &ModelWatcher{
		watcher:  w,
		targets:  cleaned,
		logger:   logger,
		debounce: DefaultReloadDebounce,
	}, nil
}

// Run processes file events until ctx is cancelled, then closes the watcher.
func (m *ModelWatcher) Run(ctx context.Context) {
	defer m.watcher.Close()

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(m.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if _, watched := m.targets[path]; !watched {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending[path] = time.Now()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.WithError(err).Warn("Model watcher error")

		case now := <-ticker.C:
			for path, at := range pending {
				if now.Sub(at) < m.debounce {
					continue
				}
				delete(pending, path)
				m.reload(path)
			}
		}
	}
}

func (m *ModelWatcher) reload(path string) {
	log := m.logger.WithField("model", path)
	if err := m.targets[path].Reload(); err != nil {
		log.WithError(err).Error("Model reload failed, keeping previous model")
		return
	}
	log.Info("Model reloaded")
}
