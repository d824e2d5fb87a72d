package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roelfdiedericks/wabot/internal/bus"
	"github.com/roelfdiedericks/wabot/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the settings file when it changes and publishes the new
// config on bus.TopicConfigReloaded. Invalid edits are logged and ignored;
// the previous config stays active.
type Watcher struct {
	path     string
	holder   *Holder
	events   *bus.Bus
	debounce time.Duration

	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	pending *time.Timer
}

// NewWatcher watches path (the file a Holder's config was loaded from).
// The parent directory is watched so editors that replace the file are seen.
func NewWatcher(path string, holder *Holder, events *bus.Bus) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		holder:   holder,
		events:   events,
		debounce: defaultDebounce,
		fs:       fsw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.trigger()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.L_warn("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.L_warn("config: reload rejected, keeping previous settings", "path", w.path, "error", err)
		return
	}
	w.holder.Set(cfg)
	logging.L_info("config: reloaded", "path", w.path, "prefix", cfg.Prefix, "mode", cfg.Mode)
	if w.events != nil {
		w.events.PublishFrom(bus.TopicConfigReloaded, cfg, "config")
	}
}

// Stop ends the watch loop.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	err := w.fs.Close()
	<-w.done
	return err
}
