package skills

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aatumaykin/skillbot/internal/logger"
)

// Watcher watches the skills directory and invokes a callback after
// changes settle. Rapid bursts of events (editor saves, pip-style
// multi-file writes) collapse into a single callback.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *logger.Logger
	onChange func()

	fw   *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher creates a watcher for the given directory. The onChange
// callback runs on the watcher goroutine after the debounce window.
func NewWatcher(dir string, debounce time.Duration, log *logger.Logger, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		logger:   log,
		onChange: onChange,
		fw:       fw,
		done:     make(chan struct{}),
	}

	go w.loop()

	return w, nil
}

// loop handles file system events until Close.
func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("skills directory changed",
				logger.Field{Key: "op", Value: event.Op.String()},
				logger.Field{Key: "path", Value: event.Name},
			)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.onChange()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("skills watch error", err)
		}
	}
}

// relevant reports whether an event concerns a skill document.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
