package demo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestSeedWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte("tasks:\n  - id: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	store := NewMemoryStore(nil)
	w, err := NewSeedWatcher(path, store, &WatcherConfig{DebounceInterval: 20 * time.Millisecond, Logger: logger})
	if err != nil {
		t.Fatalf("NewSeedWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	if err := os.WriteFile(path, []byte("tasks:\n  - id: a\n  - id: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Reloads():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	tasks, _ := store.Load(context.Background())
	if len(tasks) != 2 {
		t.Fatalf("store holds %d tasks, want 2", len(tasks))
	}
}

func TestSeedWatcherKeepsStoreOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte("tasks: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	store := NewMemoryStore(SeedTasks())
	w, err := NewSeedWatcher(path, store, &WatcherConfig{DebounceInterval: 10 * time.Millisecond, Logger: logger})
	if err != nil {
		t.Fatalf("NewSeedWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(path, []byte("tasks: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	tasks, _ := store.Load(context.Background())
	if len(tasks) != len(SeedTasks()) {
		t.Fatalf("bad seed replaced the store: %d tasks", len(tasks))
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewSeedWatcherValidates(t *testing.T) {
	if _, err := NewSeedWatcher("", NewMemoryStore(nil), nil); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewSeedWatcher("seed.yaml", nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}
