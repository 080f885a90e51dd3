package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/foresight/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle
// before reloading.
const DefaultDebounce = 100 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the reload debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRemove sets the hook called for each policy that was in the file at
// the previous load and is gone from it now.
func WithRemove(fn func(name string) error) WatcherOption {
	return func(w *Watcher) { w.remove = fn }
}

// WithWatcherLogger sets the logger for reload failures.
func WithWatcherLogger(l *logging.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher reloads a policy file whenever it changes and hands each valid
// policy to apply. A file that fails to parse is logged and ignored; the
// previously applied policies stay in effect. Policies deleted from the
// file are passed to the WithRemove hook; without one they stay in effect.
type Watcher struct {
	path     string
	apply    func(Policy) error
	remove   func(string) error
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
	reloads int
	loaded  []string
}

// NewWatcher creates a watcher for path. Nothing is loaded until Start.
func NewWatcher(path string, apply func(Policy) error, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		apply:    apply,
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Editors replace files by rename, so watch the directory.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}
	return w, nil
}

// Start performs an initial load and begins watching. The initial load
// error, if any, is returned; watching continues regardless.
func (w *Watcher) Start() error {
	err := w.reload()

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.watchLoop()
	return err
}

// Stop stops watching and waits for the loop to exit. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

// Reloads returns how many times the file has been successfully applied.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	target := filepath.Base(w.path)
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if err := w.reload(); err != nil {
				w.logger.Warn("policy reload failed", "path", w.path, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() error {
	// A zero-length file is a write in progress, not an empty policy set.
	if info, err := os.Stat(w.path); err == nil && info.Size() == 0 {
		w.logger.Debug("policy file is empty, waiting for content", "path", w.path)
		return nil
	}
	policies, err := LoadFile(w.path)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(policies))
	for _, p := range policies {
		if err := w.apply(p); err != nil {
			return fmt.Errorf("apply policy %q: %w", p.Name, err)
		}
		names = append(names, p.Name)
	}

	w.mu.Lock()
	previous := w.loaded
	w.loaded = names
	w.reloads++
	w.mu.Unlock()

	removed := 0
	for _, name := range previous {
		if slices.Contains(names, name) {
			continue
		}
		if w.remove == nil {
			w.logger.Debug("policy dropped from file but kept", "policy", name)
			continue
		}
		if err := w.remove(name); err != nil {
			w.logger.Warn("failed to remove policy", "policy", name, "error", err)
			continue
		}
		removed++
	}

	w.logger.Info("policies loaded", "path", w.path, "count", len(policies), "removed", removed)
	return nil
}
