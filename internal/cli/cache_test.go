package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheUsage(t *testing.T) {
	dir := t.TempDir()
	shard := filepath.Join(dir, "ab")
	if err := os.MkdirAll(shard, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shard, "graph.json"), []byte(`{"repo_id":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, size := cacheUsage(dir)
	if entries != 2 {
		t.Errorf("entries = %d, want 2", entries)
	}
	if size == 0 {
		t.Error("size should count file bytes")
	}
}

func TestCacheUsage_MissingDir(t *testing.T) {
	entries, size := cacheUsage(filepath.Join(t.TempDir(), "nope"))
	if entries != 0 || size != 0 {
		t.Errorf("missing dir should be empty, got %d entries / %d bytes", entries, size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
