package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

// spyRunner records whether a subprocess would have been spawned.
type spyRunner struct {
	called   bool
	lastCmd  string
	result   *ExecResult
}

func (s *spyRunner) run(_ context.Context, command string) *ExecResult {
	s.called = true
	s.lastCmd = command
	if s.result != nil {
		return s.result
	}
	return &ExecResult{Stdout: "spy output"}
}

func newSpyShell(t *testing.T) (*ShellExec, *spyRunner) {
	t.Helper()
	spy := &spyRunner{}
	shell := NewShellExec("", nil, 5*time.Second)
	shell.run = spy.run
	return shell, spy
}

func TestShellExec_DenylistBlocksBeforeExecution(t *testing.T) {
	shell, spy := newSpyShell(t)

	out, err := shell.Exec(context.Background(), "rm -rf /home/user", 2000)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(out, "Refused") {
		t.Errorf("output = %q, want a refusal", out)
	}
	if spy.called {
		t.Error("subprocess was spawned for a denied command")
	}
}

func TestShellExec_ExtraDeniedPatterns(t *testing.T) {
	spy := &spyRunner{}
	shell := NewShellExec("", []string{"curl"}, 5*time.Second)
	shell.run = spy.run

	out, _ := shell.Exec(context.Background(), "curl https://example.com", 2000)
	if !strings.Contains(out, "Refused") || spy.called {
		t.Errorf("extra denied pattern not enforced: %q, called=%v", out, spy.called)
	}
}

func TestShellExec_RunsAllowedCommand(t *testing.T) {
	shell, spy := newSpyShell(t)

	out, err := shell.Exec(context.Background(), "echo hello", 2000)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !spy.called || spy.lastCmd != "echo hello" {
		t.Errorf("command not passed through: called=%v cmd=%q", spy.called, spy.lastCmd)
	}
	if out != "spy output" {
		t.Errorf("output = %q", out)
	}
}

func TestShellExec_OutputCap(t *testing.T) {
	shell, spy := newSpyShell(t)
	spy.result = &ExecResult{Stdout: strings.Repeat("x", 5000)}

	out, err := shell.Exec(context.Background(), "yes | head -c 5000", 2000)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(out) > 2000+len("\n[... output truncated ...]") {
		t.Errorf("output not capped: %d bytes", len(out))
	}
	if !strings.Contains(out, "truncated") {
		t.Error("expected truncation notice")
	}
}

func TestShellExec_ReportsExitCodeAndStderr(t *testing.T) {
	shell, spy := newSpyShell(t)
	spy.result = &ExecResult{Stderr: "no such file", ExitCode: 2}

	out, err := shell.Exec(context.Background(), "ls /nope", 2000)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(out, "no such file") || !strings.Contains(out, "exit code 2") {
		t.Errorf("output = %q", out)
	}
}

func TestShellExec_RealEcho(t *testing.T) {
	shell := NewShellExec("", nil, 5*time.Second)

	out, err := shell.Exec(context.Background(), "echo real", 2000)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(out, "real") {
		t.Errorf("output = %q", out)
	}
}
