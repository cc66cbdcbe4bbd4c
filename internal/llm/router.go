package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
)

// noProviderMsg is returned to callers when no provider is configured
// or reachable. It is a normal assistant-style message, not an error
// the loop has to special-case.
const noProviderMsg = "No AI provider is available right now. Configure a provider (Ollama, Groq, OpenAI, Perplexity, or Anthropic) and try again."

// fallbackOrder is the probe order used when the primary provider is
// down. Fast hosted providers first, local last, Anthropic as the
// final resort.
var fallbackOrder = []string{"groq", "perplexity", "openai", "ollama", "anthropic"}

// Binding is a provider plus its default model.
type Binding struct {
	Provider Provider
	Model    string
}

// Router owns the set of configured providers and dispatches chat
// requests to the active one. Providers are registered once at startup;
// the active binding can change at runtime via SetProvider.
//
// Adapter errors never escape the router: Chat and ChatStream convert
// them into Err-flagged ChatResults with human-readable content.
type Router struct {
	logger *slog.Logger
	bus    *events.Bus

	mu       sync.Mutex
	bindings map[string]Binding
	active   string // empty until Initialize or SetProvider succeeds
	model    string
}

// NewRouter creates a router with no active provider.
func NewRouter(logger *slog.Logger, bus *events.Bus) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger.With("component", "router"),
		bus:      bus,
		bindings: make(map[string]Binding),
	}
}

// Register adds a provider with its default model. Call before
// Initialize.
func (r *Router) Register(p Provider, defaultModel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[p.Name()] = Binding{Provider: p, Model: defaultModel}
}

// Probe checks whether a single registered provider answers. It exists
// so health watchers can monitor providers individually without going
// through the active binding.
func (r *Router) Probe(ctx context.Context, name string) error {
	r.mu.Lock()
	b, ok := r.bindings[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	if !b.Provider.CheckConnection(ctx) {
		return fmt.Errorf("provider %q unreachable", name)
	}
	return nil
}

// Initialize probes the preferred provider, then the fallback chain,
// and activates the first that answers. Returns the active provider
// name, or empty if everything is down.
func (r *Router) Initialize(ctx context.Context, preferred string) string {
	candidates := make([]string, 0, len(fallbackOrder)+1)
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	for _, name := range fallbackOrder {
		if name != preferred {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		r.mu.Lock()
		b, ok := r.bindings[name]
		r.mu.Unlock()
		if !ok {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		up := b.Provider.CheckConnection(probeCtx)
		cancel()

		if !up {
			r.logger.Warn("provider unreachable", "provider", name)
			r.bus.Emit(events.SourceRouter, events.KindProviderDown, map[string]any{"provider": name})
			continue
		}

		r.mu.Lock()
		r.active = name
		r.model = b.Model
		r.mu.Unlock()

		r.logger.Info("provider active", "provider", name, "model", b.Model)
		r.bus.Emit(events.SourceRouter, events.KindProviderSwitch, map[string]any{
			"provider": name,
			"model":    b.Model,
		})
		return name
	}

	r.logger.Error("no AI provider reachable")
	return ""
}

// SetProvider atomically switches the active provider and model.
// Returns false if the provider is not registered. An empty model
// keeps the provider's default.
func (r *Router) SetProvider(name, model string) bool {
	r.mu.Lock()
	b, ok := r.bindings[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if model == "" {
		model = b.Model
	}
	r.active = name
	r.model = model
	r.mu.Unlock()

	r.logger.Info("provider switched", "provider", name, "model", model)
	r.bus.Emit(events.SourceRouter, events.KindProviderSwitch, map[string]any{
		"provider": name,
		"model":    model,
	})
	return true
}

// snapshot returns the active binding under the same lock SetProvider
// takes, so a concurrent switch never yields a torn provider/model pair.
func (r *Router) snapshot() (Provider, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil, "", false
	}
	b := r.bindings[r.active]
	return b.Provider, r.model, true
}

// Chat dispatches a chat request to the active provider.
func (r *Router) Chat(ctx context.Context, messages []Message, tools []map[string]any) *ChatResult {
	return r.dispatch(ctx, messages, tools, nil)
}

// ChatStream dispatches a streaming chat request to the active provider.
func (r *Router) ChatStream(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) *ChatResult {
	return r.dispatch(ctx, messages, tools, callback)
}

func (r *Router) dispatch(ctx context.Context, messages []Message, tools []map[string]any, callback StreamCallback) *ChatResult {
	provider, model, ok := r.snapshot()
	if !ok {
		return ErrorResult(noProviderMsg)
	}

	var (
		result *ChatResult
		err    error
	)
	if callback != nil {
		result, err = provider.ChatStream(ctx, model, messages, tools, callback)
	} else {
		result, err = provider.Chat(ctx, model, messages, tools)
	}
	if err != nil {
		r.logger.Error("provider call failed", "provider", provider.Name(), "model", model, "error", err)
		return ErrorResult(fmt.Sprintf("The %s provider failed: %v", provider.Name(), err))
	}
	if result.Model == "" {
		result.Model = model
	}
	return result
}

// RouterStatus describes the router's current binding.
type RouterStatus struct {
	Active     string   `json:"active"`
	Model      string   `json:"model"`
	Configured []string `json:"configured"`
}

// Status returns the active binding and all registered provider names.
func (r *Router) Status() RouterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	return RouterStatus{
		Active:     r.active,
		Model:      r.model,
		Configured: names,
	}
}

// ListAllModels queries every registered provider for its models.
// Unreachable providers map to empty slices.
func (r *Router) ListAllModels(ctx context.Context) map[string][]string {
	r.mu.Lock()
	bindings := make(map[string]Binding, len(r.bindings))
	for name, b := range r.bindings {
		bindings[name] = b
	}
	r.mu.Unlock()

	result := make(map[string][]string, len(bindings))
	for name, b := range bindings {
		result[name] = b.Provider.ListModels(ctx)
	}
	return result
}

// Close shuts down all registered providers.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		b.Provider.Close()
	}
	r.active = ""
}
