package docsource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 256

// WatchConfig configures inbox directory watching.
type WatchConfig struct {
	// Enabled controls whether inbox watching is active.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Dir is the inbox directory to watch for dropped documents.
	Dir string `yaml:"dir" json:"dir"`

	// Patterns are doublestar globs, relative to Dir, selecting which
	// files are picked up (e.g. "**/*.md", "guidelines/*.pdf").
	Patterns []string `yaml:"patterns" json:"patterns"`

	// DebounceDelay is how long to wait for more changes before emitting.
	DebounceDelay time.Duration `yaml:"debounce_delay" json:"debounce_delay"`

	// ExcludeDirs lists directory names to skip.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
}

// DefaultWatchConfig returns the default inbox configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:       false,
		Dir:           "inbox",
		Patterns:      []string{"**/*.md", "**/*.txt", "**/*.pdf"},
		DebounceDelay: 500 * time.Millisecond,
		ExcludeDirs:   []string{".git", "node_modules"},
	}
}

func (c *WatchConfig) debounce() time.Duration {
	if c.DebounceDelay <= 0 {
		return 500 * time.Millisecond
	}
	return c.DebounceDelay
}

// WatchEvent reports a document dropped into or changed in the inbox.
type WatchEvent struct {
	// Path is relative to the inbox directory.
	Path string

	// AbsPath is the absolute file path.
	AbsPath string
}

// Watcher watches the inbox directory and emits an event per changed
// document, debounced so an editor's save dance produces one event.
type Watcher struct {
	config   WatchConfig
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]bool

	pendingMu sync.Mutex
	pending   map[string]struct{}

	events chan WatchEvent
}

// NewWatcher creates an inbox watcher.
func NewWatcher(config WatchConfig, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	excludes := make(map[string]bool)
	for _, dir := range config.ExcludeDirs {
		excludes[dir] = true
	}

	return &Watcher{
		config:   config,
		watcher:  fsw,
		logger:   logger,
		excludes: excludes,
		pending:  make(map[string]struct{}),
		events:   make(chan WatchEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of inbox events.
func (w *Watcher) Events() <-chan WatchEvent {
	return w.events
}

// Start begins watching the inbox directory. The events channel closes when
// ctx is cancelled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.config.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Inbox watcher started",
		"dir", w.config.Dir,
		"patterns", w.config.Patterns,
		"debounce", w.config.debounce())
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if w.excludes[base] || (strings.HasPrefix(base, ".") && path != root) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// matches reports whether a path relative to the inbox matches a configured
// glob. No patterns means everything matches.
func (w *Watcher) matches(relPath string) bool {
	if len(w.config.Patterns) == 0 {
		return true
	}
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range w.config.Patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.config.debounce())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return
	}

	path := event.Name
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
	}

	relPath, err := filepath.Rel(w.config.Dir, path)
	if err != nil || !w.matches(relPath) {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("Inbox change detected", "path", relPath, "op", event.Op.String())
}

func (w *Watcher) handleNewDirectory(path string) {
	base := filepath.Base(path)
	if w.excludes[base] || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toEmit := make([]string, 0, len(w.pending))
	for path := range w.pending {
		toEmit = append(toEmit, path)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for _, path := range toEmit {
		relPath, err := filepath.Rel(w.config.Dir, path)
		if err != nil {
			relPath = path
		}
		select {
		case w.events <- WatchEvent{Path: relPath, AbsPath: path}:
		default:
			w.logger.Warn("Inbox event channel full, dropping event", "path", relPath)
		}
	}
}
