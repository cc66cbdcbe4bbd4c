package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReadBytes caps read_file output.
const maxReadBytes = 10000

// systemDirs are path prefixes the standard file tools refuse to touch.
// The check runs before any filesystem access.
var systemDirs = []string{
	"/etc",
	"/sys",
	"/proc",
	"/boot",
	"/dev",
	"/usr/bin",
	"/usr/sbin",
	"/bin",
	"/sbin",
	"C:\\Windows",
	"C:\\Program Files",
}

// checkPathAllowed rejects paths under system directories.
func checkPathAllowed(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	for _, dir := range systemDirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return fmt.Errorf("access to system directory %s is not allowed", dir)
		}
	}
	return nil
}

// ReadFileCapped reads a file for the read_file tool: system-dir
// denylist first, content truncated past the cap.
func ReadFileCapped(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file_path is required")
	}
	if err := checkPathAllowed(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("read file: %w", err)
	}

	content := string(data)
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes] + "\n[... truncated ...]"
	}
	return content, nil
}

// WriteFileChecked writes a file for the write_file tool: same
// denylist, parent directories created as needed.
func WriteFileChecked(path, content string) error {
	if path == "" {
		return fmt.Errorf("file_path is required")
	}
	if err := checkPathAllowed(path); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent directories: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// ReadFileSystem is the elevated filesystem tool: unrestricted reads
// and directory listings, no denylist.
func ReadFileSystem(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("read directory: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("Directory %s (%d entries):\n%s", path, len(names), strings.Join(names, "\n")), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	const elevatedCap = 50 * 1024
	if len(content) > elevatedCap {
		content = content[:elevatedCap] + "\n[... truncated ...]"
	}
	return content, nil
}
