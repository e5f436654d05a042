// loader/watcher.go
package loader

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
)

// DefaultDebounce coalesces the burst of filesystem events an editor emits
// for one logical save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher drives hot reload: it observes the modules directory and the
// configuration file, debounces event bursts per path, and hands each
// settled change to the loader. It runs on its own goroutine and shares no
// lock with request dispatch; the registry swap inside the loader is the
// only synchronization point.
type Watcher struct {
	loader   *Loader
	events   *logger.Events
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(l *Loader) *Watcher {
	return &Watcher{
		loader:   l,
		events:   l.events,
		debounce: DefaultDebounce,
		timers:   map[string]*time.Timer{},
	}
}

// Run blocks until ctx is done, dispatching debounced reloads. The caller
// owns the goroutine (the server lifecycle starts one).
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.loader.Dir()); err != nil {
		return err
	}
	cfgPath := w.loader.ConfigPath()
	if cfgPath != "" {
		// Watch the directory; editors replace files on save.
		if err := fsw.Add(filepath.Dir(cfgPath)); err != nil {
			return err
		}
	}

	w.events.System("WATCH_STARTED",
		zap.String("modulesDir", w.loader.Dir()),
		zap.String("configPath", cfgPath),
	)

	for {
		select {
		case <-ctx.Done():
			w.cancelTimers()
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev, cfgPath)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.events.System("WATCH_ERROR", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, cfgPath string) {
	path := filepath.Clean(ev.Name)

	if cfgPath != "" && path == filepath.Clean(cfgPath) {
		if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
			w.schedule(path, func() { _, _ = w.loader.ReloadConfig() })
		}
		return
	}

	if filepath.Dir(path) != filepath.Clean(w.loader.Dir()) {
		return
	}
	if !strings.HasSuffix(path, ".toml") || strings.HasPrefix(filepath.Base(path), "_") {
		return
	}

	switch {
	case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.schedule(path, func() { w.loader.ReloadModule(path) })
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.schedule(path, func() { w.loader.UnloadModule(path) })
	}
}

// schedule resets the per-path debounce timer so only the last event of a
// burst fires.
func (w *Watcher) schedule(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		fn()
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
	})
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = map[string]*time.Timer{}
}
