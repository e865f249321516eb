package macro

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads a Store's macros from a JSON file on disk, for an
// operator hand-editing macros outside the admin HTTP surface. Grounded
// on the same drivesync.Watcher debounce-then-emit shape as
// config.Watcher: a burst of writes to the same file collapses into one
// reload.
type Watcher struct {
	path  string
	fsw   *fsnotify.Watcher
	store *Store

	mu    sync.Mutex
	timer *time.Timer

	stop    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a Watcher over path, reloading store whenever path
// changes.
func NewWatcher(path string, store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		fsw:     fsw,
		store:   store,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
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
			log.Printf("[macro] watch error: %v", err)
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
	seeds, err := LoadSeedsFile(w.path)
	if err != nil {
		log.Printf("[macro] reload of %s failed: %v", w.path, err)
		return
	}
	w.store.Reload(seeds)
	log.Printf("[macro] reloaded %d macro(s) from %s", len(seeds), w.path)
}

// LoadSeedsFile reads a standalone macros JSON document (an array of
// MacroSeed) from disk.
func LoadSeedsFile(path string) ([]MacroSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seeds []MacroSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, err
	}
	return seeds, nil
}

// SaveSeedsFile writes store's current macros to path as indented JSON,
// the format LoadSeedsFile/Watcher expect.
func SaveSeedsFile(path string, store *Store) error {
	list := store.List()
	seeds := make([]MacroSeed, 0, len(list))
	for _, m := range list {
		seeds = append(seeds, MacroSeed{Name: m.Name, Expansion: m.Expansion})
	}
	data, err := json.MarshalIndent(seeds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
