package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileCapped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileCapped(path)
	if err != nil {
		t.Fatalf("ReadFileCapped: %v", err)
	}
	if got != "hello world" {
		t.Errorf("content = %q", got)
	}

	if _, err := ReadFileCapped(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadFileCapped_Truncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", maxReadBytes+500)), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileCapped(path)
	if err != nil {
		t.Fatalf("ReadFileCapped: %v", err)
	}
	if !strings.Contains(got, "truncated") {
		t.Error("expected truncation notice")
	}
	if len(got) > maxReadBytes+100 {
		t.Errorf("content not capped: %d bytes", len(got))
	}
}

func TestSystemDirDenylist(t *testing.T) {
	for _, path := range []string{"/etc/passwd", "/sys/kernel/something", "/proc/1/status"} {
		if _, err := ReadFileCapped(path); err == nil {
			t.Errorf("expected refusal reading %s", path)
		}
		if err := WriteFileChecked(path, "x"); err == nil {
			t.Errorf("expected refusal writing %s", path)
		}
	}
}

func TestWriteFileChecked_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep", "nested", "file.txt")

	if err := WriteFileChecked(path, "content"); err != nil {
		t.Fatalf("WriteFileChecked: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
}

func TestReadFileSystem_DirectoryListing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFileSystem(dir)
	if err != nil {
		t.Fatalf("ReadFileSystem: %v", err)
	}
	if !strings.Contains(got, "b.txt") || !strings.Contains(got, "sub/") {
		t.Errorf("listing = %q", got)
	}
}
