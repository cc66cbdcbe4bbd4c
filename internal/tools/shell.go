package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultDeniedPatterns blocks obviously destructive commands. Matched
// case-insensitively as substrings, before any subprocess is spawned.
var defaultDeniedPatterns = []string{
	"rm -rf",
	"mkfs",
	"dd if=",
	"> /dev/sd",
	"chmod -r 777 /",
	":(){ :|:& };:", // Fork bomb
	"shutdown",
	"reboot",
}

// ShellExec runs shell commands for the run_command and execute_shell
// tools.
type ShellExec struct {
	workingDir string
	denied     []string
	timeout    time.Duration

	// run performs the actual subprocess invocation. Tests swap in a
	// spy to assert that denied commands never reach it.
	run func(ctx context.Context, command string) *ExecResult
}

// NewShellExec creates a shell executor. Extra denied patterns from
// config are appended to the built-in set.
func NewShellExec(workingDir string, extraDenied []string, timeout time.Duration) *ShellExec {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &ShellExec{
		workingDir: workingDir,
		denied:     append(append([]string{}, defaultDeniedPatterns...), extraDenied...),
		timeout:    timeout,
	}
	s.run = s.runReal
	return s
}

// ExecResult contains the result of a command execution.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Exec executes a shell command after the denylist check. The check
// runs before any side effect; a refusal means no subprocess was
// spawned. Output is truncated to maxOutput bytes.
func (s *ShellExec) Exec(ctx context.Context, command string, maxOutput int) (string, error) {
	cmdLower := strings.ToLower(command)
	for _, denied := range s.denied {
		if strings.Contains(cmdLower, strings.ToLower(denied)) {
			return fmt.Sprintf("Refused: command matches blocked pattern %q. No command was executed.", denied), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := s.run(ctx, command)

	var out strings.Builder
	if result.Stdout != "" {
		out.WriteString(result.Stdout)
	}
	if result.Stderr != "" {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("stderr: " + result.Stderr)
	}
	if result.TimedOut {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString("(command timed out)")
	} else if result.ExitCode != 0 {
		fmt.Fprintf(&out, "\n(exit code %d)", result.ExitCode)
	}
	if out.Len() == 0 {
		out.WriteString("(no output)")
	}

	return truncateOutput(out.String(), maxOutput), nil
}

func (s *ShellExec) runReal(ctx context.Context, command string) *ExecResult {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if s.workingDir != "" {
		cmd.Dir = s.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.Error = err.Error()
			result.ExitCode = -1
		}
	}

	return result
}

// truncateOutput truncates output to maxBytes, adding a note if truncated.
func truncateOutput(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n[... output truncated ...]"
}
