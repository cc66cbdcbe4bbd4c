// Package config handles Jarvis configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/jarvis/config.yaml, /etc/jarvis/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "jarvis", "config.yaml"))
	}

	paths = append(paths, "/etc/jarvis/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Jarvis configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Agent      AgentConfig      `yaml:"agent"`
	Tools      ToolsConfig      `yaml:"tools"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Email      EmailConfig      `yaml:"email"`
	Speech     SpeechConfig     `yaml:"speech"`
	DataDir    string           `yaml:"data_dir"`
	LogLevel   string           `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ProvidersConfig selects the primary AI provider and holds per-provider
// credentials. API keys support environment expansion (e.g., ${GROQ_API_KEY}).
type ProvidersConfig struct {
	// Primary is the provider tried first: ollama, groq, openai,
	// perplexity, or anthropic.
	Primary string `yaml:"primary"`

	Ollama     OllamaConfig   `yaml:"ollama"`
	Groq       APIConfig      `yaml:"groq"`
	OpenAI     APIConfig      `yaml:"openai"`
	Perplexity APIConfig      `yaml:"perplexity"`
	Anthropic  APIConfig      `yaml:"anthropic"`
}

// OllamaConfig defines the local Ollama endpoint.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: http://localhost:11434
	Model   string `yaml:"model"`
}

// APIConfig defines a hosted provider's credentials and default model.
type APIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // Optional endpoint override
}

// Configured reports whether an API key is present.
func (c APIConfig) Configured() bool {
	return c.APIKey != ""
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	// MaxSteps is the hard ceiling on loop iterations (default 50).
	MaxSteps int `yaml:"max_steps"`
	// TokenBudget is the cumulative token ceiling per run (default 100000).
	TokenBudget int `yaml:"token_budget"`
	// HistoryTurns is how many prior conversation turns to seed (default 10).
	HistoryTurns int `yaml:"history_turns"`
	// TimeoutSec bounds a single run end to end (default 300).
	TimeoutSec int `yaml:"timeout_sec"`
	// SkillsDir holds markdown guidance files appended to the system
	// prompt. Empty disables skills.
	SkillsDir string `yaml:"skills_dir"`
}

// ToolsConfig defines tool availability and safety limits.
type ToolsConfig struct {
	// JarvisMode unlocks the elevated tool set (unrestricted shell,
	// filesystem reads, browser control, email). Off by default.
	JarvisMode bool `yaml:"jarvis_mode"`
	// DeniedPatterns extends the built-in command denylist.
	DeniedPatterns []string `yaml:"denied_patterns"`
	// CommandTimeoutSec caps run_command execution (default 30).
	CommandTimeoutSec int `yaml:"command_timeout_sec"`
	// DynamicDir stores agent-created tool sources.
	// Defaults to <data_dir>/tools.
	DynamicDir string `yaml:"dynamic_dir"`
	// NotesDir stores markdown notes. Defaults to <data_dir>/notes.
	NotesDir string `yaml:"notes_dir"`
}

// EmbeddingsConfig defines embedding generation settings.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`    // Embedding model name (e.g., nomic-embed-text)
	BaseURL string `yaml:"base_url"` // Ollama URL (defaults to providers.ollama.base_url)
}

// SearchConfig defines web search providers.
type SearchConfig struct {
	// Primary is the default search backend: brave or searxng.
	Primary string `yaml:"primary"`
	Brave   struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"brave"`
	SearXNG struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"searxng"`
}

// EmailConfig defines outbound email settings for the send_email tool.
type EmailConfig struct {
	// From is the sender address (e.g., "Jarvis <jarvis@example.com>").
	From string `yaml:"from"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		StartTLS bool   `yaml:"starttls"`
	} `yaml:"smtp"`
}

// Configured reports whether outbound email is usable.
func (c EmailConfig) Configured() bool {
	return c.SMTP.Host != "" && c.From != ""
}

// SpeechConfig defines the text-to-speech collaborator.
type SpeechConfig struct {
	// Command is an executable that reads text from stdin and speaks it
	// (e.g., "espeak", "say"). Empty disables speech.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{
		Listen: ListenConfig{Port: 8000},
		Providers: ProvidersConfig{
			Primary: "groq",
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "llama3.2",
			},
			Groq:       APIConfig{Model: "llama-3.3-70b-versatile"},
			OpenAI:     APIConfig{Model: "gpt-4o"},
			Perplexity: APIConfig{Model: "sonar-pro"},
			Anthropic:  APIConfig{Model: "claude-sonnet-4-20250514"},
		},
		Agent: AgentConfig{
			MaxSteps:     50,
			TokenBudget:  100000,
			HistoryTurns: 10,
			TimeoutSec:   300,
		},
		Tools: ToolsConfig{
			CommandTimeoutSec: 30,
		},
		DataDir: "./data",
	}
	return cfg
}

// applyDefaults fills derived values after unmarshal.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 50
	}
	if c.Agent.TokenBudget <= 0 {
		c.Agent.TokenBudget = 100000
	}
	if c.Agent.HistoryTurns <= 0 {
		c.Agent.HistoryTurns = 10
	}
	if c.Agent.TimeoutSec <= 0 {
		c.Agent.TimeoutSec = 300
	}
	if c.Tools.CommandTimeoutSec <= 0 {
		c.Tools.CommandTimeoutSec = 30
	}
	if c.Tools.DynamicDir == "" {
		c.Tools.DynamicDir = filepath.Join(c.DataDir, "tools")
	}
	if c.Tools.NotesDir == "" {
		c.Tools.NotesDir = filepath.Join(c.DataDir, "notes")
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = c.Providers.Ollama.BaseURL
	}
}
