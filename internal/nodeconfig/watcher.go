package nodeconfig

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hstp/node/pkg/logging"
)

// DefaultDebounceInterval is how long the watcher waits for additional
// writes to the same file before firing a reload, matching the teacher's
// filesystem change detector's debounce window.
const DefaultDebounceInterval = 500 * time.Millisecond

// ReloadFunc is called once per debounced change to path.
type ReloadFunc func(path string)

// Watcher watches a transport config directory and calls a ReloadFunc once
// per debounced batch of writes, so a running node can pick up edited
// transport YAML without a restart (§6, SUPPLEMENTED FEATURES item 3).
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	debounce time.Duration
	timers   map[string]*time.Timer
	stopCh   chan struct{}
}

// NewWatcher constructs a Watcher with the given debounce interval; zero
// uses DefaultDebounceInterval.
func NewWatcher(debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &Watcher{
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
}

// Watch begins watching dir, calling onReload for each debounced change.
// Watch is not safe to call twice on the same Watcher without Stop first.
func (w *Watcher) Watch(dir string, onReload ReloadFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	go w.processEvents(fw, stopCh, onReload)
	logging.Info("nodeconfig", "watching %s for transport config changes", dir)
	return nil
}

func (w *Watcher) processEvents(fw *fsnotify.Watcher, stopCh chan struct{}, onReload ReloadFunc) {
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(ev.Name) != ".yml" && filepath.Ext(ev.Name) != ".yaml" {
				continue
			}
			w.debounceReload(ev.Name, onReload)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("nodeconfig", err, "transport config watcher error")
		case <-stopCh:
			return
		}
	}
}

func (w *Watcher) debounceReload(path string, onReload ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		onReload(path)
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
	})
}

// Stop shuts down the watcher and cancels any pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
}
