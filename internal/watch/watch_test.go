package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alembic-run/alembic/internal/platform"
)

func claudePlatform(t *testing.T) platform.Platform {
	t.Helper()
	p, ok := platform.Lookup("claude")
	if !ok {
		t.Fatal("claude platform missing")
	}
	return p
}

func TestWatcherEmitsDebouncedBatch(t *testing.T) {
	ws := t.TempDir()
	rulesDir := filepath.Join(ws, ".claude", "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(ws, []platform.Platform{claudePlatform(t)})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	w.debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	defer w.Stop()

	target := filepath.Join(rulesDir, "style.md")
	if err := os.WriteFile(target, []byte("# v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("# v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-w.Changes:
		found := false
		for _, f := range batch {
			if f == target {
				found = true
			}
		}
		if !found {
			t.Errorf("batch = %v, want %q included", batch, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change batch within deadline")
	}
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	ws := t.TempDir()
	w, err := New(ws, []platform.Platform{claudePlatform(t)})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	w.debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(ws, "README.md"), []byte("docs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-w.Changes:
		t.Errorf("unexpected batch %v for non-platform file", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherStopWithUnreadBatches(t *testing.T) {
	ws := t.TempDir()
	rulesDir := filepath.Join(ws, ".claude", "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(ws, []platform.Platform{claudePlatform(t)})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	w.debounce = 5 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}

	// Produce more batches than the channel buffers, with nobody
	// reading, so the debounce loop ends up blocked on a send.
	for i := 0; i < 8; i++ {
		target := filepath.Join(rulesDir, "style.md")
		if err := os.WriteFile(target, []byte{byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * w.debounce)
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return with unread batches pending")
	}
}

func TestWatcherRootFileTriggers(t *testing.T) {
	ws := t.TempDir()
	w, err := New(ws, []platform.Platform{claudePlatform(t)})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	w.debounce = 20 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	defer w.Stop()

	target := filepath.Join(ws, "CLAUDE.md")
	if err := os.WriteFile(target, []byte("# root\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-w.Changes:
		if len(batch) != 1 || batch[0] != target {
			t.Errorf("batch = %v, want [%q]", batch, target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change batch within deadline")
	}
}
