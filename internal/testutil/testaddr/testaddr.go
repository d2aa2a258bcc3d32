package testaddr

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// IPC returns an ipc:// endpoint in a fresh short temp dir. Unix socket paths
// are limited to roughly 100 bytes so t.TempDir is too deep on most hosts.
func IPC(t *testing.T, name string) string {
	t.Helper()
	return "ipc://" + filepath.Join(Dir(t), name)
}

// Dir returns a short temp dir removed at test cleanup.
func Dir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "nf")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
