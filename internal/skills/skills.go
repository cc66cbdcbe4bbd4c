// Package skills loads markdown guidance files that extend the agent's
// system prompt. Dropping a .md file into the skills directory teaches
// the assistant a new behavior without a rebuild.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader reads skill files from a directory.
type Loader struct {
	dir string
}

// NewLoader creates a skill loader. An empty dir disables loading.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads every .md file in the skills directory, strips YAML
// frontmatter, and returns the combined content in filename order,
// ready to append to the system prompt. A missing directory is not an
// error; it just means no skills.
func (l *Loader) Load() (string, error) {
	files, err := l.files()
	if err != nil || len(files) == 0 {
		return "", err
	}

	var parts []string
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(l.dir, f))
		if err != nil {
			return "", fmt.Errorf("read skill %s: %w", f, err)
		}
		content := stripFrontmatter(string(data))
		if strings.TrimSpace(content) != "" {
			parts = append(parts, strings.TrimSpace(content))
		}
	}

	return strings.Join(parts, "\n\n---\n\n"), nil
}

// List returns the names of available skill files, without the .md
// extension, sorted.
func (l *Loader) List() ([]string, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(f, ".md"))
	}
	return names, nil
}

func (l *Loader) files() ([]string, error) {
	if l.dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skills dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// stripFrontmatter removes a leading YAML frontmatter block delimited
// by "---" lines. Skill files may carry metadata there; the model only
// sees the body.
func stripFrontmatter(raw string) string {
	if !strings.HasPrefix(raw, "---") {
		return raw
	}

	rest := strings.TrimLeft(raw[3:], " \t")
	switch {
	case strings.HasPrefix(rest, "\n"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "\r\n"):
		rest = rest[2:]
	default:
		return raw
	}

	closeIdx := strings.Index(rest, "\n---")
	if closeIdx < 0 {
		return raw
	}
	return strings.TrimLeft(rest[closeIdx+4:], "\r\n")
}
