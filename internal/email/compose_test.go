package email

import (
	"strings"
	"testing"
)

func TestComposeMessage(t *testing.T) {
	msg, err := ComposeMessage(ComposeOptions{
		From:    "Jarvis <jarvis@example.com>",
		To:      []string{"Sam <sam@example.com>"},
		Cc:      []string{"ops@example.com"},
		Subject: "Morning briefing",
		Body:    "# Today\n\n**Two** meetings and a [doc](https://example.com/d).",
	})
	if err != nil {
		t.Fatalf("ComposeMessage: %v", err)
	}

	s := string(msg)
	for _, want := range []string{
		"From: \"Jarvis\" <jarvis@example.com>",
		"To: \"Sam\" <sam@example.com>",
		"Cc: <ops@example.com>",
		"Subject: Morning briefing",
		"Message-Id:",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q", want)
		}
	}

	// Markdown rendered in the HTML part, stripped in the plain part.
	if !strings.Contains(s, "<strong>Two</strong>") {
		t.Error("expected bold rendered in HTML part")
	}
	if !strings.Contains(s, "doc (https://example.com/d)") {
		t.Error("expected link flattened in plain part")
	}
}

func TestComposeMessage_BadAddress(t *testing.T) {
	_, err := ComposeMessage(ComposeOptions{
		From:    "not an address",
		To:      []string{"sam@example.com"},
		Subject: "x",
	})
	if err == nil {
		t.Error("expected error for malformed from address")
	}

	_, err = ComposeMessage(ComposeOptions{
		From:    "jarvis@example.com",
		To:      []string{"<<broken"},
		Subject: "x",
	})
	if err == nil {
		t.Error("expected error for malformed recipient")
	}
}

func TestMarkdownToPlain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**bold** text", "bold text"},
		{"a [link](https://x.dev) here", "a link (https://x.dev) here"},
		{"## Heading\nbody", "Heading\nbody"},
		{"run `ls -la` now", "run ls -la now"},
		{"```go\nfmt.Println()\n```", "fmt.Println()"},
	}
	for _, tt := range tests {
		if got := markdownToPlain(tt.in); got != tt.want {
			t.Errorf("markdownToPlain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jarvis <jarvis@example.com>", "jarvis@example.com"},
		{"plain@example.com", "plain@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractAddress(tt.in); got != tt.want {
			t.Errorf("extractAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectRecipients_Dedupes(t *testing.T) {
	got := collectRecipients(
		[]string{"A <a@x.com>", "b@x.com"},
		[]string{"a@x.com"},
		[]string{"c@x.com"},
	)
	want := []string{"a@x.com", "b@x.com", "c@x.com"}
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("recipients[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
