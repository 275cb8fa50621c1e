//go:build !windows

package proc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/haystack-sidecar/pkg/log"
)

func TestSpawner_StartsInDir(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-haystack")
	body := "#!/bin/sh\necho \"$1 $2\" > started.txt\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewSpawner(log.NewNoopLogger())
	if err := s.Spawn(context.Background(), script, []string{"server", "start"}, dir); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	marker := filepath.Join(dir, "started.txt")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(marker); err == nil && len(data) > 0 {
			if string(data) != "server start\n" {
				t.Errorf("args = %q, want %q", data, "server start\n")
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("spawned process never ran")
}

func TestSpawner_MissingBinary(t *testing.T) {
	s := NewSpawner(log.NewNoopLogger())
	err := s.Spawn(context.Background(), filepath.Join(t.TempDir(), "absent"), nil, t.TempDir())
	if err == nil {
		t.Fatal("Spawn() error = nil, want error for missing binary")
	}
}

func TestSpawner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSpawner(log.NewNoopLogger())
	if err := s.Spawn(ctx, "/bin/true", nil, t.TempDir()); err == nil {
		t.Fatal("Spawn() error = nil, want context error")
	}
}
