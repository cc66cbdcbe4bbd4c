package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// paraCategories are the note folders, following the PARA method.
var paraCategories = []string{"projects", "areas", "resources", "archives"}

// Notes manages the markdown note vault backing the memory_note tool.
type Notes struct {
	dir string
}

// NewNotes creates a note store rooted at dir.
func NewNotes(dir string) *Notes {
	return &Notes{dir: dir}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

func (n *Notes) categoryDir(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "resources"
	}
	valid := false
	for _, c := range paraCategories {
		if c == category {
			valid = true
			break
		}
	}
	if !valid {
		return "", fmt.Errorf("unknown category %q (valid: %s)", category, strings.Join(paraCategories, ", "))
	}
	return filepath.Join(n.dir, category), nil
}

// Create writes a new note as markdown with a small metadata header.
func (n *Notes) Create(title, content, category string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("title is required")
	}
	dir, err := n.categoryDir(category)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create category dir: %w", err)
	}

	path := filepath.Join(dir, slugify(title)+".md")
	doc := fmt.Sprintf("# %s\n\n_Created: %s_\n\n%s\n",
		title, time.Now().Format("2006-01-02 15:04"), content)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return path, nil
}

// Read returns a note's content by title, searching all categories.
func (n *Notes) Read(title string) (string, error) {
	slug := slugify(title)
	for _, category := range paraCategories {
		path := filepath.Join(n.dir, category, slug+".md")
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("note %q not found", title)
}

// List returns note titles, optionally filtered to one category.
func (n *Notes) List(category string) ([]string, error) {
	categories := paraCategories
	if category != "" {
		dir, err := n.categoryDir(category)
		if err != nil {
			return nil, err
		}
		categories = []string{filepath.Base(dir)}
	}

	var titles []string
	for _, c := range categories {
		entries, err := os.ReadDir(filepath.Join(n.dir, c))
		if err != nil {
			continue // Category folder not created yet.
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			titles = append(titles, c+"/"+strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	sort.Strings(titles)
	return titles, nil
}

// Search returns notes whose name or content contains the query.
func (n *Notes) Search(query string) ([]string, error) {
	query = strings.ToLower(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	var matches []string
	for _, c := range paraCategories {
		dir := filepath.Join(n.dir, c)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			name := c + "/" + strings.TrimSuffix(e.Name(), ".md")
			if strings.Contains(strings.ToLower(name), query) {
				matches = append(matches, name)
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err == nil && strings.Contains(strings.ToLower(string(data)), query) {
				matches = append(matches, name)
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}
