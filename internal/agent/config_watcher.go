package agent

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigWatcher monitors the TOML config file via fsnotify and emits a fresh
// Config on C after each accepted edit. CLI flags keep precedence over file
// edits, and state-dir and once cannot be changed at runtime. Connection
// settings (max-conns, send-buf, dial-timeout) take effect on the next
// reconnect.
type ConfigWatcher struct {
	path    string
	changed map[string]bool
	log     zerolog.Logger

	// C delivers at most one pending Config; a newer edit replaces an
	// unconsumed older one.
	C chan Config

	mu       sync.Mutex
	cur      Config
	debounce *time.Timer
}

func NewConfigWatcher(path string, cur Config, changed map[string]bool) *ConfigWatcher {
	return &ConfigWatcher{
		path:    path,
		changed: changed,
		log:     logger.With().Str("component", "config-watcher").Logger(),
		C:       make(chan Config, 1),
		cur:     cur,
	}
}

// Run watches the config file until ctx is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn().Err(err).Msg("config watch disabled")
		return
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors that rename a
	// temp file over the original would silently kill a file watch.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config watch disabled")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watch error")
		}
	}
}

func (w *ConfigWatcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}

	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *ConfigWatcher) reload() {
	fc, err := loadFileConfig(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.cur
	if err := applyFileConfig(&next, fc, w.changed); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	next.StateDir = w.cur.StateDir
	next.Once = w.cur.Once
	if err := next.Validate(); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	if next == w.cur {
		return
	}
	w.cur = next

	select {
	case <-w.C:
	default:
	}
	w.C <- next
}
