// Jarvis is a personal voice assistant agent.
//
// It runs a tool-calling reasoning loop over whichever AI provider is
// available (Ollama, Groq, OpenAI, Perplexity, or Anthropic), persists
// conversations and facts to SQLite, schedules future tasks from
// natural language phrases, and exposes an HTTP + WebSocket API.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	jarvis serve             Start the API server
//	jarvis ask <question>    Ask a single question (for testing)
//	jarvis version           Print version and build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/agent"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/api"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/buildinfo"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/config"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/connwatch"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/email"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/embeddings"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/fetch"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/llm"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/memory"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/scheduler"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/search"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/skills"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/speech"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run] so the startup-to-shutdown lifecycle
// can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the jarvis command. Arguments are
// parsed by hand: the flag package relies on package-level globals,
// which makes it impossible to call run() concurrently from tests, and
// the argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: jarvis ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	info := buildinfo.Info()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Jarvis - Personal Voice Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: jarvis [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/jarvis/config.yaml, /etc/jarvis/config.yaml")
	return nil
}

// runAsk boots a minimal agent (no memory, no scheduler, no server)
// and processes a single question, printing the response to stdout.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)
	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	router := buildRouter(cfg, logger, nil)
	defer router.Close()
	if active := router.Initialize(ctx, cfg.Providers.Primary); active == "" {
		return errors.New("no AI provider reachable")
	}

	registry := tools.NewRegistry(logger, nil)
	tools.RegisterBuiltins(registry, tools.Deps{
		Shell: tools.NewShellExec("", cfg.Tools.DeniedPatterns,
			time.Duration(cfg.Tools.CommandTimeoutSec)*time.Second),
		Notes:   tools.NewNotes(cfg.Tools.NotesDir),
		Fetcher: fetch.New(),
	})

	loop := agent.NewLoop(logger, router, registry, nil, nil, cfg.Agent)

	var response string
	for step := range loop.Run(ctx, question, nil, toolMode(cfg)) {
		if step.Kind == agent.StepResponse || step.Kind == agent.StepError {
			response = step.Content
		}
	}

	fmt.Fprintln(stdout, response)
	return nil
}

// runServe is the primary operating mode: loads config, opens
// databases, probes providers, wires the agent loop with all tools,
// starts the scheduler and the API server, and blocks until a shutdown
// signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Jarvis", "version", buildinfo.Version)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"primary", cfg.Providers.Primary,
		"jarvis_mode", cfg.Tools.JarvisMode,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	bus := events.New()

	// --- Providers ---
	router := buildRouter(cfg, logger, bus)
	defer router.Close()
	if active := router.Initialize(ctx, cfg.Providers.Primary); active == "" {
		logger.Warn("no AI provider reachable at startup; chat will fail until one comes up")
	}

	// --- Memory ---
	// Optional Ollama embeddings give fact recall semantic ranking;
	// without them, recall falls back to substring matching.
	var embedder memory.Embedder
	if cfg.Embeddings.Enabled {
		embedder = embeddings.New(embeddings.Config{
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
		logger.Info("embeddings enabled", "model", cfg.Embeddings.Model)
	}

	memPath := cfg.DataDir + "/memory.db"
	mem, err := memory.NewStore(memPath, logger, embedder)
	if err != nil {
		return fmt.Errorf("open memory database %s: %w", memPath, err)
	}
	defer mem.Close()
	logger.Info("memory database opened", "path", memPath)

	// --- Speech ---
	var synth speech.Synthesizer = speech.Noop{}
	if cfg.Speech.Command != "" {
		synth = speech.NewExecSynthesizer(logger, cfg.Speech.Command, cfg.Speech.Args)
		logger.Info("speech enabled", "command", cfg.Speech.Command)
	}

	// --- Scheduler ---
	// The execute callback closes over the loop, which is built after
	// the registry below; tasks cannot fire before sched.Start.
	var loop *agent.Loop
	mode := toolMode(cfg)

	taskPath := cfg.DataDir + "/tasks.db"
	taskStore, err := scheduler.NewStore(taskPath)
	if err != nil {
		return fmt.Errorf("open task database %s: %w", taskPath, err)
	}
	defer taskStore.Close()

	sched := scheduler.New(logger, bus, taskStore,
		func(ctx context.Context, task *scheduler.Task, execution *scheduler.Execution) error {
			return executeTask(ctx, logger, loop, synth, mode, task, execution)
		})

	// --- Tools ---
	registry := tools.NewRegistry(logger, bus)

	shell := tools.NewShellExec("", cfg.Tools.DeniedPatterns,
		time.Duration(cfg.Tools.CommandTimeoutSec)*time.Second)

	var searcher *search.Manager
	if cfg.Search.Brave.APIKey != "" || cfg.Search.SearXNG.BaseURL != "" {
		searcher = search.NewManager(cfg.Search.Primary)
		if cfg.Search.Brave.APIKey != "" {
			searcher.Register(search.NewBrave(cfg.Search.Brave.APIKey))
		}
		if cfg.Search.SearXNG.BaseURL != "" {
			searcher.Register(search.NewSearXNG(cfg.Search.SearXNG.BaseURL))
		}
	}

	var mailer *email.Sender
	if cfg.Email.Configured() {
		mailer = email.NewSender(logger, email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			StartTLS: cfg.Email.SMTP.StartTLS,
		}, cfg.Email.From)
		logger.Info("email enabled", "from", cfg.Email.From)
	}

	dynamic := tools.NewDynamicTooler(logger, bus, cfg.Tools.DynamicDir, registry)
	if n, err := dynamic.LoadAll(); err != nil {
		logger.Warn("failed to load dynamic tools", "error", err)
	} else if n > 0 {
		logger.Info("dynamic tools loaded", "count", n)
	}

	tools.RegisterBuiltins(registry, tools.Deps{
		Scheduler: sched,
		Memory:    mem,
		Search:    searcher,
		Email:     mailer,
		Browser:   tools.NewBrowser(logger),
		Shell:     shell,
		Notes:     tools.NewNotes(cfg.Tools.NotesDir),
		Dynamic:   dynamic,
		Fetcher:   fetch.New(),
	})
	logger.Info("tools registered", "standard", len(registry.Names(tools.ModeStandard)),
		"jarvis", len(registry.Names(tools.ModeJarvis)))

	// --- Agent loop ---
	loop = agent.NewLoop(logger, router, registry, mem, bus, cfg.Agent)

	if cfg.Agent.SkillsDir != "" {
		loader := skills.NewLoader(cfg.Agent.SkillsDir)
		guidance, err := loader.Load()
		if err != nil {
			logger.Warn("failed to load skills", "dir", cfg.Agent.SkillsDir, "error", err)
		} else if guidance != "" {
			loop.SetSkills(guidance)
			names, _ := loader.List()
			logger.Info("skills loaded", "count", len(names))
		}
	}

	// --- Lifecycle ---
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Provider health ---
	// Each registered provider gets a background watcher. When the
	// active provider drops, reselect; when the configured primary
	// recovers, switch back to it.
	connMgr := connwatch.NewManager(logger)
	defer connMgr.Stop()
	for _, name := range router.Status().Configured {
		connMgr.Watch(ctx, connwatch.WatcherConfig{
			Name: name,
			Probe: func(probeCtx context.Context) error {
				return router.Probe(probeCtx, name)
			},
			OnDown: func(err error) {
				if router.Status().Active != name {
					return
				}
				logger.Warn("active provider went down, reselecting",
					"provider", name, "error", err)
				router.Initialize(ctx, cfg.Providers.Primary)
			},
			OnReady: func() {
				if name == cfg.Providers.Primary && router.Status().Active != name {
					logger.Info("primary provider recovered, switching back", "provider", name)
					router.Initialize(ctx, cfg.Providers.Primary)
				}
			},
		})
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port,
		loop, router, sched, bus, mode, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	logger.Info("goodbye")
	return nil
}

// executeTask dispatches a fired scheduled task by payload kind.
func executeTask(ctx context.Context, logger *slog.Logger, loop *agent.Loop,
	synth speech.Synthesizer, mode tools.Mode,
	task *scheduler.Task, execution *scheduler.Execution) error {

	message, _ := task.Payload.Data["message"].(string)

	switch task.Payload.Kind {
	case scheduler.PayloadSpeak:
		if err := synth.Speak(ctx, message); err != nil {
			logger.Warn("task speech failed", "task", task.Name, "error", err)
		}
		execution.Result = "spoke: " + message
		return nil

	case scheduler.PayloadCommand:
		command, _ := task.Payload.Data["command"].(string)
		if command == "" {
			command = message
		}
		if loop == nil {
			return errors.New("agent loop not ready")
		}
		var response string
		for step := range loop.Run(ctx, command, nil, mode) {
			if step.Kind == agent.StepResponse {
				response = step.Content
			}
			if step.Kind == agent.StepError {
				return errors.New(step.Content)
			}
		}
		execution.Result = response
		if err := synth.Speak(ctx, response); err != nil {
			logger.Warn("task speech failed", "task", task.Name, "error", err)
		}
		return nil

	case scheduler.PayloadReminder:
		announcement := "Reminder: " + message
		if err := synth.Speak(ctx, announcement); err != nil {
			logger.Warn("reminder speech failed", "task", task.Name, "error", err)
		}
		execution.Result = announcement
		return nil

	default:
		return fmt.Errorf("unknown payload kind %q", task.Payload.Kind)
	}
}

// buildRouter registers every configured provider. Ollama is always
// registered; hosted providers need an API key.
func buildRouter(cfg *config.Config, logger *slog.Logger, bus *events.Bus) *llm.Router {
	router := llm.NewRouter(logger, bus)

	router.Register(llm.NewOllamaClient(cfg.Providers.Ollama.BaseURL, logger),
		cfg.Providers.Ollama.Model)

	if cfg.Providers.Groq.Configured() {
		router.Register(llm.NewGroqClient(cfg.Providers.Groq.APIKey, logger),
			cfg.Providers.Groq.Model)
	}
	if cfg.Providers.OpenAI.Configured() {
		router.Register(llm.NewOpenAIClient(cfg.Providers.OpenAI.APIKey, logger),
			cfg.Providers.OpenAI.Model)
	}
	if cfg.Providers.Perplexity.Configured() {
		router.Register(llm.NewPerplexityClient(cfg.Providers.Perplexity.APIKey, logger),
			cfg.Providers.Perplexity.Model)
	}
	if cfg.Providers.Anthropic.Configured() {
		router.Register(llm.NewAnthropicClient(cfg.Providers.Anthropic.APIKey, logger),
			cfg.Providers.Anthropic.Model)
	}

	return router
}

func toolMode(cfg *config.Config) tools.Mode {
	if cfg.Tools.JarvisMode {
		return tools.ModeJarvis
	}
	return tools.ModeStandard
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
