package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractHTML(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<nav>Navigation stuff</nav>
<script>var x = 1;</script>
<style>.foo { color: red; }</style>
<main>
<h1>Hello World</h1>
<p>This is a test paragraph with <strong>bold text</strong>.</p>
<p>Second paragraph.</p>
</main>
<footer>Footer stuff</footer>
</body>
</html>`

	title, content := extractHTML(html)

	if title != "Test Page" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(content, "Hello World") {
		t.Errorf("content missing heading: %q", content)
	}
	if !strings.Contains(content, "bold text") {
		t.Errorf("content missing inline text: %q", content)
	}
	for _, boilerplate := range []string{"var x = 1", "Navigation stuff", "Footer stuff", "color: red"} {
		if strings.Contains(content, boilerplate) {
			t.Errorf("content contains boilerplate %q", boilerplate)
		}
	}
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "jarvis/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Test</title></head><body><p>Hello from test server</p></body></html>`))
	}))
	defer ts.Close()

	result, err := New().Fetch(context.Background(), ts.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Title != "Test" {
		t.Errorf("title = %q", result.Title)
	}
	if !strings.Contains(result.Content, "Hello from test server") {
		t.Errorf("content = %q", result.Content)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("status = %d", result.StatusCode)
	}
}

func TestFetch_PlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Just plain text content"))
	}))
	defer ts.Close()

	result, err := New().Fetch(context.Background(), ts.URL, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Content != "Just plain text content" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestFetch_Truncation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(strings.Repeat("word ", 1000)))
	}))
	defer ts.Close()

	result, err := New().Fetch(context.Background(), ts.URL, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.Truncated {
		t.Error("expected truncation")
	}
	if len(result.Content) > 110 {
		t.Errorf("content length = %d", len(result.Content))
	}
	if !strings.Contains(result.Summary(), "[content truncated]") {
		t.Error("summary missing truncation marker")
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	if _, err := New().Fetch(context.Background(), "", 0); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestCleanWhitespace(t *testing.T) {
	input := "  Hello   world  \n\n\n\n  Second line  \n\n\n Third  "
	got := cleanWhitespace(input)
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("should not have triple newlines: %q", got)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "Héllo wörld café"
	truncated := truncateUTF8(s, 5)
	if len([]rune(truncated)) > 5 {
		t.Errorf("want at most 5 runes, got %d: %q", len([]rune(truncated)), truncated)
	}
}

func TestSummary(t *testing.T) {
	r := &Result{URL: "https://example.com", Title: "Example", Content: "body text"}
	sum := r.Summary()
	if !strings.HasPrefix(sum, "Title: Example\nURL: https://example.com\n\n") {
		t.Errorf("summary = %q", sum)
	}
	if !strings.HasSuffix(sum, "body text") {
		t.Errorf("summary = %q", sum)
	}
}
