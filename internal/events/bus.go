// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from components (agent loop, provider router,
// scheduler, tool registry) to subscribers (WebSocket handlers, future
// metrics collector). The bus is nil-safe: calling Publish on a nil *Bus
// is a no-op, so components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceAgent identifies events from the reasoning loop.
	SourceAgent = "agent"
	// SourceRouter identifies events from the provider router.
	SourceRouter = "router"
	// SourceScheduler identifies events from the task scheduler.
	SourceScheduler = "scheduler"
	// SourceTools identifies events from the tool registry.
	SourceTools = "tools"
)

// Kind constants describe the type of event within a source.
const (
	// KindRunStart signals the beginning of an agent run.
	// Data: run_id, mode, message_len.
	KindRunStart = "run_start"
	// KindLLMCall signals the start of a provider chat call.
	// Data: run_id, step, provider, model.
	KindLLMCall = "llm_call"
	// KindLLMResponse signals completion of a provider chat call.
	// Data: run_id, step, provider, model, tokens_in, tokens_out, tool_calls.
	KindLLMResponse = "llm_response"
	// KindToolCall signals the start of a tool execution.
	// Data: run_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a tool execution.
	// Data: run_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindRunComplete signals the end of an agent run.
	// Data: run_id, state, steps, total_tokens, elapsed_ms.
	KindRunComplete = "run_complete"

	// KindProviderSwitch signals the active provider changed.
	// Data: provider, model.
	KindProviderSwitch = "provider_switch"
	// KindProviderDown signals a provider failed its connection probe.
	// Data: provider.
	KindProviderDown = "provider_down"

	// KindTaskFired signals a scheduled task has begun executing.
	// Data: task_id, task_name.
	KindTaskFired = "task_fired"
	// KindTaskComplete signals a scheduled task has finished executing.
	// Data: task_id, task_name, ok, duration_ms.
	KindTaskComplete = "task_complete"

	// KindToolCreated signals a dynamic tool was registered.
	// Data: tool, registered.
	KindToolCreated = "tool_created"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu sync.RWMutex
	// Keyed by the receive-only view handed to the subscriber so that
	// Unsubscribe can take <-chan Event; the value is the same channel
	// with its send end intact.
	subs map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{subs: make(map[<-chan Event]chan Event)}
}

// Publish delivers e to every subscriber whose buffer has room. Full
// subscribers miss the event. Safe on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Emit publishes an event stamped with the current time.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	b.Publish(Event{
		Timestamp: time.Now(),
		Source:    source,
		Kind:      kind,
		Data:      data,
	})
}

// Subscribe registers a new subscriber with the given channel buffer
// (64 suits WebSocket consumers). Callers must Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown
// channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	send, ok := b.subs[ch]
	if !ok {
		return
	}
	delete(b.subs, ch)
	close(send)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
