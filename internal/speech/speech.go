// Package speech turns agent responses into audio via an external
// text-to-speech command.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Synthesizer speaks text aloud. Implementations must be safe for
// concurrent use.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// defaultTimeout bounds a single synthesis call so a hung TTS binary
// cannot wedge the scheduler or the agent loop.
const defaultTimeout = 60 * time.Second

// ExecSynthesizer pipes text to a configured command's stdin
// (e.g. espeak, say, piper).
type ExecSynthesizer struct {
	logger  *slog.Logger
	command string
	args    []string
}

// NewExecSynthesizer creates a synthesizer around an external command.
func NewExecSynthesizer(logger *slog.Logger, command string, args []string) *ExecSynthesizer {
	return &ExecSynthesizer{
		logger:  logger.With("component", "speech"),
		command: command,
		args:    args,
	}
}

// Speak runs the command with text on stdin and waits for it to finish.
func (s *ExecSynthesizer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = strings.NewReader(text)

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speech command %q: %w", s.command, err)
	}
	s.logger.Debug("spoke text", "chars", len(text), "elapsed", time.Since(start))
	return nil
}

// Noop is a Synthesizer that discards everything. Used when no speech
// command is configured.
type Noop struct{}

func (Noop) Speak(context.Context, string) error { return nil }
