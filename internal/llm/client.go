package llm

import "context"

// Provider is the interface that all AI provider adapters implement.
//
// Chat and ChatStream return an error only for transport or protocol
// failures; the router converts those into Err-flagged ChatResults so
// callers above it never handle raw provider faults.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "groq").
	Name() string

	// CheckConnection reports whether the provider is reachable and
	// credentialed. It never panics; any failure yields false.
	CheckConnection(ctx context.Context) bool

	// ListModels returns available model names. Best effort: an
	// unreachable provider yields an empty slice.
	ListModels(ctx context.Context) []string

	// Chat sends a chat completion request and returns the result.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResult, error)

	// ChatStream sends a streaming chat request. If callback is non-nil,
	// tokens are streamed to it.
	ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResult, error)

	// Close releases any held resources. Idempotent.
	Close()
}
