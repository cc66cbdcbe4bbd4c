package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/jarvis-test\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Providers.Primary != "groq" {
		t.Errorf("Primary = %q, want groq", cfg.Providers.Primary)
	}
	if cfg.Agent.MaxSteps != 50 {
		t.Errorf("MaxSteps = %d, want 50", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.TokenBudget != 100000 {
		t.Errorf("TokenBudget = %d, want 100000", cfg.Agent.TokenBudget)
	}
	if cfg.Tools.DynamicDir != filepath.Join("/tmp/jarvis-test", "tools") {
		t.Errorf("DynamicDir = %q", cfg.Tools.DynamicDir)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("JARVIS_TEST_KEY", "sk-test-123")

	path := writeConfig(t, `
providers:
  primary: openai
  openai:
    api_key: ${JARVIS_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Providers.OpenAI.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Providers.OpenAI.APIKey)
	}
	if !cfg.Providers.OpenAI.Configured() {
		t.Error("expected OpenAI to report configured")
	}
}

func TestLoad_OverridesKeepUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  max_steps: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want 10", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.TokenBudget != 100000 {
		t.Errorf("TokenBudget = %d, want default 100000", cfg.Agent.TokenBudget)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"bogus", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
