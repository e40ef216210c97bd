package storage

import (
	"os"
	"path/filepath"
	"testing"

	"MiniMR/internal/types"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/tmp/run-1")
	p := types.Partition("abc")

	if got := l.PartitionDir(p); got != "/tmp/run-1/worker-abc" {
		t.Fatalf("PartitionDir: got %s", got)
	}
	if got := l.IntermediatePath(p, "a.txt"); got != "/tmp/run-1/worker-abc/a.txt" {
		t.Fatalf("IntermediatePath: got %s", got)
	}
	if got := l.OutputPath(p); got != "/tmp/run-1/output/abc" {
		t.Fatalf("OutputPath: got %s", got)
	}
	if got := l.ReportPath(); got != "/tmp/run-1/report.txt" {
		t.Fatalf("ReportPath: got %s", got)
	}
}

func TestListFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "c.txt"), []byte("y"), 0644); err != nil {
		t.Fatalf("Failed to write nested file: %v", err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 regular files, got %d: %+v", len(files), files)
	}
	if files[0].Name != "a.txt" || files[1].Name != "b.txt" {
		t.Fatalf("Files should be sorted by name: %+v", files)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Fatalf("Expected not-exist error, got %v", err)
	}
}
