// Package watch reruns the guard when generator scripts or the widget
// catalog change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives the paths that settled since the last call.
type Handler func(ctx context.Context, changed []string)

// Watcher reports settled changes under a set of files and directories.
type Watcher struct {
	targets  []string
	debounce time.Duration
	tick     time.Duration
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher for paths. Files are watched through their parent
// directory so editors that replace files on save are still seen.
func New(paths []string, opts ...Option) *Watcher {
	w := &Watcher{
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			w.targets = append(w.targets, abs)
		}
	}
	w.tick = w.debounce / 3
	if w.tick < 10*time.Millisecond {
		w.tick = 10 * time.Millisecond
	}
	return w
}

// Run watches until ctx is done, calling h with each batch of settled
// paths. h runs on the watcher goroutine; events arriving meanwhile are
// queued by fsnotify.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	dirs, err := w.addTargets(fw)
	if err != nil {
		return err
	}
	w.logger.Debug("watching", zap.Strings("dirs", dirs))

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			if changed := settle(pending, w.debounce); len(changed) > 0 {
				w.logger.Debug("changes settled", zap.Strings("paths", changed))
				h(ctx, changed)
			}
		}
	}
}

// addTargets registers the directory of every target that exists.
func (w *Watcher) addTargets(fw *fsnotify.Watcher) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, t := range w.targets {
		dir := t
		if info, err := os.Stat(t); err != nil || !info.IsDir() {
			dir = filepath.Dir(t)
		}
		if seen[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			w.logger.Debug("skipping missing watch dir", zap.String("dir", dir))
			continue
		}
		if err := fw.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("watch: none of %v exist", w.targets)
	}
	return dirs, nil
}

// relevant reports whether name is a target or lies directly in a target
// directory.
func (w *Watcher) relevant(name string) bool {
	for _, t := range w.targets {
		if name == t || filepath.Dir(name) == t {
			return true
		}
	}
	return false
}

// settle removes and returns, sorted, the paths quiet for at least d.
func settle(pending map[string]time.Time, d time.Duration) []string {
	now := time.Now()
	var out []string
	for path, at := range pending {
		if now.Sub(at) >= d {
			out = append(out, path)
			delete(pending, path)
		}
	}
	sort.Strings(out)
	return out
}
