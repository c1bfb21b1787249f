package config

import (
	"context"
	"os"
	"sync"
	"time"

	"system-mqtt/pkg/log"
)

// defaultWatchInterval is how often the watcher polls the file.
const defaultWatchInterval = 5 * time.Second

// Watcher polls the configuration file and reports edits. Polling the
// modification time keeps it free of platform notification APIs, which is
// plenty for a file that changes a few times a year.
type Watcher struct {
	path     string
	lastMod  time.Time
	interval time.Duration
	onChange func(*Config)
	stopCh   chan struct{}
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher that calls onChange with the freshly loaded
// configuration whenever the file at path is modified and loads cleanly.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		interval: defaultWatchInterval,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling the file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return log.Errorf("failed to stat config file: %v", err)
	}
	w.lastMod = info.ModTime()

	w.wg.Add(1)
	go w.watchLoop(ctx)
	log.Debug("Config watcher started", "path", w.path)
	return nil
}

// Stop terminates the polling loop and waits for it to exit. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopCh:
		// Already stopped
		return
	default:
		close(w.stopCh)
	}

	w.wg.Wait()
}

// watchLoop periodically checks the configuration file for changes.
func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	w.mu.Lock()
	interval := w.interval
	w.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkForChanges()
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		}
	}
}

// checkForChanges reloads the configuration when the file's modification
// time advanced. A file that fails to load keeps lastMod untouched, so the
// load is retried on the next poll.
func (w *Watcher) checkForChanges() {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		log.Warn("Failed to stat config file", "path", w.path, "error", err)
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}

	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Error("Changed config file does not load, keeping the previous configuration", "path", w.path, "error", err)
		return
	}

	w.lastMod = info.ModTime()
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// SetInterval overrides the polling interval. Call it before Start.
func (w *Watcher) SetInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interval = interval
}
