package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher monitors the config file and triggers reloads.
type Watcher struct {
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []func(*Config)
	stopCh      chan struct{}
	mu          sync.RWMutex
	running     bool
	lastModTime time.Time
}

// NewWatcher creates a watcher for the given config.
func NewWatcher(cfg *Config) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		config:  cfg,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// AddCallback registers a function called after each successful reload.
func (w *Watcher) AddCallback(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for config changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	configFile := w.config.ConfigFile()
	if stat, err := os.Stat(configFile); err == nil {
		w.lastModTime = stat.ModTime()
	}

	if err := w.watcher.Add(configFile); err != nil {
		return fmt.Errorf("watching config file: %w", err)
	}

	w.running = true
	go w.loop()
	return nil
}

// Stop stops the watcher. The underlying fsnotify watcher is closed
// even when Start never ran, so the file descriptor is released.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		close(w.stopCh)
		w.running = false
	}
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.Errorf("config watcher error: %v", err)
		case <-w.stopCh:
			return
		}
	}
}

// handleChange debounces editor double-writes via mod time before
// reloading.
func (w *Watcher) handleChange() {
	stat, err := os.Stat(w.config.ConfigFile())
	if err != nil {
		return
	}

	w.mu.Lock()
	if !stat.ModTime().After(w.lastModTime) {
		w.mu.Unlock()
		return
	}
	w.lastModTime = stat.ModTime()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if err := w.config.Reload(); err != nil {
		logrus.Errorf("reloading config: %v", err)
		return
	}

	logrus.Infof("config reloaded from %s", w.config.ConfigFile())
	for _, cb := range callbacks {
		cb(w.config)
	}
}
