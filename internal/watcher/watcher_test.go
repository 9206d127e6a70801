package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recordingIndexer) Accepts(path string) bool {
	return strings.HasSuffix(path, ".txt") || strings.HasSuffix(path, ".md")
}

func (r *recordingIndexer) IndexFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return nil
}

func (r *recordingIndexer) RemoveFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recordingIndexer) snapshot() (indexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...), append([]string(nil), r.removed...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, idx Indexer, root string, recursive bool) *Watcher {
	t.Helper()
	w := New(idx, []string{root}, recursive, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_IndexesCreatedFileOnce(t *testing.T) {
	dir := t.TempDir()
	idx := &recordingIndexer{}
	startWatcher(t, idx, dir, true)

	fPath := filepath.Join(dir, "hours.txt")
	if err := os.WriteFile(fPath, []byte("open late"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte{1}, 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		indexed, _ := idx.snapshot()
		return len(indexed) > 0
	})
	time.Sleep(150 * time.Millisecond)
	indexed, _ := idx.snapshot()
	if len(indexed) != 1 || indexed[0] != fPath {
		t.Errorf("indexed = %v, want [%s]", indexed, fPath)
	}
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	dir := t.TempDir()
	fPath := filepath.Join(dir, "menu.md")
	if err := os.WriteFile(fPath, []byte("menu"), 0600); err != nil {
		t.Fatal(err)
	}
	idx := &recordingIndexer{}
	startWatcher(t, idx, dir, true)

	if err := os.Remove(fPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := idx.snapshot()
		return len(removed) == 1 && removed[0] == fPath
	})
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	idx := &recordingIndexer{}
	startWatcher(t, idx, dir, true)

	sub := filepath.Join(dir, "flyers")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher time to pick up the directory before writing into it.
	time.Sleep(100 * time.Millisecond)
	fPath := filepath.Join(sub, "autumn.txt")
	if err := os.WriteFile(fPath, []byte("pumpkin"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		indexed, _ := idx.snapshot()
		for _, p := range indexed {
			if p == fPath {
				return true
			}
		}
		return false
	})
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "knowledge", "notes")
	startWatcher(t, &recordingIndexer{}, root, false)
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	idx := &recordingIndexer{}
	w := New(idx, []string{dir}, true, WithDebounce(time.Hour))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Stop()
	if indexed, _ := idx.snapshot(); len(indexed) != 0 {
		t.Errorf("pending re-index should be cancelled, got %v", indexed)
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
