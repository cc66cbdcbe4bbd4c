package speech

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestExecSynthesizer_PipesTextToStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	out := filepath.Join(t.TempDir(), "spoken.txt")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewExecSynthesizer(logger, "sh", []string{"-c", "cat > " + out})

	if err := s.Speak(context.Background(), "Good morning, sir."); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "Good morning, sir." {
		t.Errorf("spoken text = %q", got)
	}
}

func TestExecSynthesizer_EmptyTextIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewExecSynthesizer(logger, "/nonexistent/tts", nil)

	if err := s.Speak(context.Background(), "   "); err != nil {
		t.Errorf("blank text should not invoke the command: %v", err)
	}
}

func TestExecSynthesizer_CommandFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewExecSynthesizer(logger, "/nonexistent/tts", nil)

	if err := s.Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error for missing command")
	}
}

func TestNoop(t *testing.T) {
	if err := (Noop{}).Speak(context.Background(), "anything"); err != nil {
		t.Errorf("Noop.Speak: %v", err)
	}
}
