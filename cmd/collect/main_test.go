package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunReturnsExitCodeOnInitFailure(t *testing.T) {
	feeds := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(feeds, []byte("categories: [\n"), 0o644); err != nil {
		t.Fatalf("write feeds file: %v", err)
	}
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("FEEDS_FILE", feeds)

	if code := run(0); code != 1 {
		t.Fatalf("run = %d, want 1", code)
	}
}
