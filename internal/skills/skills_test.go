package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_CombinesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "b-weather.md", "When asked about weather, use web_search.")
	writeSkill(t, dir, "a-greetings.md", "Greet the user by name when you know it.")
	writeSkill(t, dir, "notes.txt", "not a skill file")

	got, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	first := strings.Index(got, "Greet the user")
	second := strings.Index(got, "use web_search")
	if first < 0 || second < 0 {
		t.Fatalf("missing skill content: %q", got)
	}
	if first > second {
		t.Error("skills not in filename order")
	}
	if !strings.Contains(got, "\n\n---\n\n") {
		t.Error("skills not separated")
	}
	if strings.Contains(got, "not a skill file") {
		t.Error("non-markdown file included")
	}
}

func TestLoad_StripsFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "tagged.md", "---\ndescription: test skill\n---\nThe actual guidance.")

	got, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "The actual guidance." {
		t.Errorf("got %q", got)
	}
}

func TestLoad_NoFrontmatterPassesThrough(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "plain.md", "Just guidance, no metadata.")

	got, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "Just guidance, no metadata." {
		t.Errorf("got %q", got)
	}
}

func TestLoad_UnclosedFrontmatterKeptVerbatim(t *testing.T) {
	dir := t.TempDir()
	raw := "---\ndescription: never closed\nStill the content."
	writeSkill(t, dir, "broken.md", raw)

	got, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != raw {
		t.Errorf("got %q, want raw content", got)
	}
}

func TestLoad_MissingDirAndEmptyDir(t *testing.T) {
	if got, err := NewLoader("").Load(); err != nil || got != "" {
		t.Errorf("empty dir config: got %q, %v", got, err)
	}
	if got, err := NewLoader("/nonexistent/skills").Load(); err != nil || got != "" {
		t.Errorf("missing dir: got %q, %v", got, err)
	}
	if got, err := NewLoader(t.TempDir()).Load(); err != nil || got != "" {
		t.Errorf("empty dir: got %q, %v", got, err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "weather.md", "w")
	writeSkill(t, dir, "calendar.md", "c")

	names, err := NewLoader(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "calendar" || names[1] != "weather" {
		t.Errorf("names = %v", names)
	}
}
