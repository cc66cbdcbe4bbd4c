// Package llm provides AI provider adapters and the router that
// dispatches chat requests across them.
package llm

import (
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID (required by Anthropic for tool_result correlation)
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall. The anonymous Function struct makes
// literal construction awkward at call sites; this keeps them tidy.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// ChatResult is the unified response from any AI provider.
// All fields use proper Go types — wire format conversion happens
// at provider boundaries (ollama.go, anthropic.go, openai.go).
//
// Err marks a result synthesized from a provider failure. The Message
// content then carries a human-readable explanation rather than model
// output. Nothing above the router sees a raw transport error.
type ChatResult struct {
	Model   string
	Message Message
	Done    bool

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int

	// Err marks a failure surfaced as a result.
	Err bool

	// Elapsed is the wall time of the provider call.
	Elapsed time.Duration
}

// TotalTokens returns input plus output token usage.
func (r *ChatResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ErrorResult builds a ChatResult carrying a human-readable failure.
func ErrorResult(msg string) *ChatResult {
	return &ChatResult{
		Message: Message{Role: "assistant", Content: msg},
		Done:    true,
		Err:     true,
	}
}

// StreamEvent represents a single event in a streaming response.
// Consumers switch on Kind to determine what data is available.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolCall is set for KindToolCallStart events.
	ToolCall *ToolCall

	// Result is set for KindDone events (final summary).
	Result *ChatResult
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota

	// KindToolCallStart fires when the model invokes a tool.
	KindToolCallStart

	// KindDone signals the stream is complete. Result carries final metadata.
	KindDone
)

// StreamCallback receives streaming events.
type StreamCallback func(event StreamEvent)
