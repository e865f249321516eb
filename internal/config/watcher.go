package config

import (
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads a settings JSON file, grounded on
// drivesync.Watcher's debounce-then-emit shape: a burst of writes to the
// same file (an editor save, a sync tool) collapses into one reload.
type Watcher struct {
	path string
	fsw  *fsnotify.Watcher

	onReload func(Settings)

	mu    sync.Mutex
	timer *time.Timer

	stop    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a Watcher over path. onReload is invoked with the
// freshly parsed Settings after each debounced change; parse failures are
// logged and the previous settings are left untouched.
func NewWatcher(path string, onReload func(Settings)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		fsw:      fsw,
		onReload: onReload,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching in its own goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down, waiting for its goroutine to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
	}
	close(w.stop)
	w.fsw.Close()
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watch error: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	settings, err := LoadFile(w.path)
	if err != nil {
		log.Printf("[config] reload of %s failed: %v", w.path, err)
		return
	}
	log.Printf("[config] reloaded %s", w.path)
	if w.onReload != nil {
		w.onReload(settings)
	}
}
