package fixtures

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// debounceWindow collapses bursts of write events from a single file copy.
const debounceWindow = 500 * time.Millisecond

// Watch observes the data directory and invokes onChange whenever a fixture
// JSON file is created, written or removed. It blocks until ctx is
// cancelled. Only used in fallback mode, where new fixture files are the
// only way datasets appear.
func (s *Store) Watch(ctx context.Context, log *logrus.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fixtures: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("fixtures: watch %s: %w", s.dir, err)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			onChange()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".json") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.WithFields(logrus.Fields{"file": filepath.Base(ev.Name), "op": ev.Op.String()}).
				Debug("fixture file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("fixture watcher error")
		}
	}
}
