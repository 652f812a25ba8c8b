// Package watcher follows session documents under a chat log root as they
// are rewritten.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Update describes the latest state of one session file.
type Update struct {
	Path        string
	Destination string
	// Document is nil when Removed is set.
	Document *session.Document
	Removed  bool
}

// UpdateCallback is called once per settled change. Calls are serialized.
type UpdateCallback func(Update) error

// Config holds configuration for the watcher
type Config struct {
	RootDir            string
	StabilityThreshold time.Duration
	OnUpdate           UpdateCallback
	Logger             zerolog.Logger
}

// Watcher monitors the chat log root and its destination directories
type Watcher struct {
	watcher            *fsnotify.Watcher
	rootDir            string
	stabilityThreshold time.Duration
	onUpdate           UpdateCallback
	logger             zerolog.Logger
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	emitMu             sync.Mutex
	stopOnce           sync.Once
}

// New creates a new session watcher
func New(cfg Config) (*Watcher, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("root directory is required")
	}

	rootDir, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            watcher,
		rootDir:            rootDir,
		stabilityThreshold: cfg.StabilityThreshold,
		onUpdate:           cfg.OnUpdate,
		logger:             cfg.Logger.With().Str("component", "watcher").Logger(),
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}, nil
}

// Start watches the root and every destination directory below it. The root
// is created if it does not exist yet.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.rootDir, 0755); err != nil {
		return fmt.Errorf("failed to create root directory: %w", err)
	}

	if err := w.watcher.Add(w.rootDir); err != nil {
		return fmt.Errorf("failed to watch root directory: %w", err)
	}

	entries, err := os.ReadDir(w.rootDir)
	if err != nil {
		return fmt.Errorf("failed to read root directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && !isHidden(entry.Name()) {
			w.addDestination(filepath.Join(w.rootDir, entry.Name()), false)
		}
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.rootDir).Msg("Session watcher started")
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info().Msg("Session watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if isHidden(filepath.Base(event.Name)) {
		return
	}

	// A new destination directory directly under the root.
	if event.Op&fsnotify.Create == fsnotify.Create && filepath.Dir(event.Name) == w.rootDir {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addDestination(event.Name, true)
			return
		}
	}

	if !session.IsSessionFile(event.Name) || filepath.Dir(filepath.Dir(event.Name)) != w.rootDir {
		return
	}

	w.debounceEvent(event)
}

// debounceEvent keeps only the latest event per file within the threshold
func (w *Watcher) debounceEvent(event fsnotify.Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	eventCopy := event

	w.debounceTimers[event.Name] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, eventCopy.Name)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.processEvent(eventCopy)
		}
	})
}

func (w *Watcher) processEvent(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename away from a session name is a removal; renames onto it arrive as Create.
		if _, err := os.Stat(event.Name); os.IsNotExist(err) {
			w.emit(Update{Path: event.Name, Destination: destinationOf(event.Name), Removed: true})
			return
		}
		w.load(event.Name)

	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.load(event.Name)
	}
}

func (w *Watcher) load(path string) {
	doc, err := session.LoadDocument(path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable session file")
		return
	}
	w.emit(Update{Path: path, Destination: destinationOf(path), Document: doc})
}

func (w *Watcher) emit(update Update) {
	if w.onUpdate == nil {
		return
	}

	w.emitMu.Lock()
	defer w.emitMu.Unlock()

	if err := w.onUpdate(update); err != nil {
		w.logger.Error().
			Err(err).
			Str("path", update.Path).
			Msg("Error handling session update")
	}
}

// addDestination watches a destination directory. Files written before the
// watch was in place are reported when scan is set.
func (w *Watcher) addDestination(dir string, scan bool) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn().Err(err).Str("path", dir).Msg("Failed to watch path")
		return
	}

	if !scan {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", dir).Msg("Failed to scan destination")
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !entry.IsDir() && session.IsSessionFile(path) {
			w.debounceEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})
		}
	}
}

func destinationOf(path string) string {
	return filepath.Base(filepath.Dir(path))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
