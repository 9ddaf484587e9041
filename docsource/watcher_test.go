package docsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherEmitsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultWatchConfig()
	cfg.Dir = dir
	cfg.Patterns = []string{"**/*.md"}
	cfg.DebounceDelay = 20 * time.Millisecond

	w, err := NewWatcher(cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "guide.md"), []byte("# g"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// A non-matching file must not produce an event.
	if err := os.WriteFile(filepath.Join(dir, "ignore.zip"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != "guide.md" {
			t.Errorf("expected guide.md, got %s", ev.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	select {
	case ev := <-w.Events():
		t.Errorf("unexpected second event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherMatchGlobs(t *testing.T) {
	cfg := DefaultWatchConfig()
	cfg.Patterns = []string{"guidelines/**/*.pdf", "*.md"}
	w := &Watcher{config: cfg}

	tests := []struct {
		path string
		want bool
	}{
		{"readme.md", true},
		{"guidelines/abap/core.pdf", true},
		{"guidelines/core.pdf", true},
		{"nested/readme.md", false},
		{"core.pdf", false},
	}
	for _, tt := range tests {
		if got := w.matches(tt.path); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcherNoPatternsMatchesEverything(t *testing.T) {
	w := &Watcher{config: WatchConfig{}}
	if !w.matches("anything/at/all.bin") {
		t.Error("empty pattern list should match everything")
	}
}
