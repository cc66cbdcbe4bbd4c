package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRegisterBuiltins_ModeVisibility(t *testing.T) {
	r := newTestRegistry(t)
	RegisterBuiltins(r, Deps{Shell: NewShellExec("", nil, time.Second)})

	standard := map[string]bool{}
	for _, name := range r.Names(ModeStandard) {
		standard[name] = true
	}
	for _, want := range []string{
		"open_application", "open_url", "web_search", "fetch_page",
		"run_command", "read_file", "write_file", "get_system_info",
		"remember", "recall", "schedule_task", "list_tasks", "cancel_task",
	} {
		if !standard[want] {
			t.Errorf("standard mode missing %s", want)
		}
	}
	for _, elevated := range []string{
		"execute_shell", "read_file_system", "stealth_browser",
		"send_email", "memory_note", "create_tool",
	} {
		if standard[elevated] {
			t.Errorf("elevated tool %s visible in standard mode", elevated)
		}
	}

	jarvis := map[string]bool{}
	for _, name := range r.Names(ModeJarvis) {
		jarvis[name] = true
	}
	for _, want := range []string{"execute_shell", "read_file_system", "stealth_browser", "send_email", "memory_note", "create_tool"} {
		if !jarvis[want] {
			t.Errorf("jarvis mode missing %s", want)
		}
	}
}

func TestRunCommand_RefusesDestructive(t *testing.T) {
	r := newTestRegistry(t)
	spy := &spyRunner{}
	shell := NewShellExec("", nil, time.Second)
	shell.run = spy.run
	RegisterBuiltins(r, Deps{Shell: shell})

	out := r.Execute(context.Background(), ModeStandard, "run_command",
		map[string]any{"command": "sudo rm -rf /"})
	if !strings.Contains(out, "Refused") {
		t.Errorf("output = %q, want refusal", out)
	}
	if spy.called {
		t.Error("destructive command reached the runner")
	}
}

func TestUnconfiguredDepsDegradeToText(t *testing.T) {
	r := newTestRegistry(t)
	RegisterBuiltins(r, Deps{})

	for _, call := range []struct {
		name string
		args map[string]any
	}{
		{"remember", map[string]any{"content": "x"}},
		{"recall", map[string]any{"query": "x"}},
		{"schedule_task", map[string]any{"description": "x", "schedule": "in 1 minute"}},
		{"run_command", map[string]any{"command": "echo hi"}},
		{"fetch_page", map[string]any{"url": "https://example.com"}},
	} {
		out := r.Execute(context.Background(), ModeStandard, call.name, call.args)
		if !strings.Contains(out, "not configured") {
			t.Errorf("%s without deps = %q, want not-configured text", call.name, out)
		}
	}
}

func TestSplitAddresses(t *testing.T) {
	got := splitAddresses("a@x.com, b@x.com ,, c@x.com")
	if len(got) != 3 || got[1] != "b@x.com" {
		t.Errorf("got %v", got)
	}
	if splitAddresses("  ") != nil {
		t.Error("blank input should yield nil")
	}
}
