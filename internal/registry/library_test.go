package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestWatchReloadsOnNewTechnique(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	r := New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, dir)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	source := []byte("package technique\n")
	if err := os.WriteFile(filepath.Join(dir, "create_halo.go"), source, 0644); err != nil {
		t.Fatalf("write technique: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for r.TechniqueCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never picked up the new technique")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, ok := r.Technique("create_halo"); !ok {
		t.Error("create_halo not registered after reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on cancellation")
	}
}

func TestWatchIgnoresNonGoFiles(t *testing.T) {
	dir := t.TempDir()
	r := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- r.Watch(ctx, dir)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := r.TechniqueCount(); n != 0 {
		t.Errorf("technique count = %d after non-Go write, want 0", n)
	}

	cancel()
	<-done
}
