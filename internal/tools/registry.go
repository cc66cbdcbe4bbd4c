// Package tools defines the tools available to the agent.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
)

// Mode selects which tier of tools is exposed to the agent.
type Mode string

const (
	// ModeStandard exposes the safe built-in tools.
	ModeStandard Mode = "standard"
	// ModeJarvis additionally exposes elevated tools: unrestricted
	// shell and filesystem access, browser control, email, dynamic
	// tool creation.
	ModeJarvis Mode = "jarvis"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	// Elevated tools are only listed and executable in ModeJarvis.
	Elevated bool                                                           `json:"-"`
	Handler  func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	logger *slog.Logger
	bus    *events.Bus

	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry. Built-ins are attached
// with RegisterBuiltins once their collaborators exist.
func NewRegistry(logger *slog.Logger, bus *events.Bus) *Registry {
	return &Registry{
		logger: logger,
		bus:    bus,
		tools:  make(map[string]*Tool),
	}
}

// Register adds a tool to the registry, replacing any previous tool
// with the same name.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, nil if absent.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns the tools visible in the given mode as OpenAI-style
// function definitions, sorted by name for stable prompts.
func (r *Registry) List(mode Mode) []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name, t := range r.tools {
		if t.Elevated && mode != ModeJarvis {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Names returns the tool names visible in the given mode.
func (r *Registry) Names(mode Mode) []string {
	var names []string
	for _, def := range r.List(mode) {
		fn := def["function"].(map[string]any)
		names = append(names, fn["name"].(string))
	}
	return names
}

// Execute runs a tool by name. Any failure — unknown tool, mode
// violation, handler error, or panic — comes back as a textual result
// the model can read and react to; Execute never propagates errors.
func (r *Registry) Execute(ctx context.Context, mode Mode, name string, args map[string]any) (result string) {
	tool := r.Get(name)
	if tool == nil {
		return (&ErrToolUnavailable{ToolName: name}).Error()
	}
	if tool.Elevated && mode != ModeJarvis {
		return fmt.Sprintf("Tool %q requires elevated (jarvis) mode.", name)
	}
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	r.bus.Emit(events.SourceTools, events.KindToolCall, map[string]any{"tool": name})

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec, "stack", string(debug.Stack()))
			result = fmt.Sprintf("Tool %q crashed: %v", name, rec)
		}
		r.bus.Emit(events.SourceTools, events.KindToolDone, map[string]any{
			"tool":        name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	out, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Debug("tool returned error", "tool", name, "error", err)
		return fmt.Sprintf("Tool %q failed: %v", name, err)
	}
	return out
}

// Argument helpers. Tool arguments arrive as map[string]any decoded
// from model-produced JSON, so every access needs a type-asserted
// fallback.

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argFloat(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return fallback
}

func argBool(args map[string]any, key string, fallback bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return fallback
}
