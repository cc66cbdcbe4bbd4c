// Package agent implements the core reasoning loop: the model plans,
// calls tools, observes results, and answers, under step and token
// budgets.
package agent

import (
	"time"
	"unicode/utf8"
)

// StepKind identifies what a step in an agent run represents.
type StepKind string

const (
	// StepThinking is assistant text produced alongside tool calls.
	StepThinking StepKind = "thinking"
	// StepToolCall is the start of a tool execution.
	StepToolCall StepKind = "tool_call"
	// StepObservation is a tool's result fed back to the model.
	StepObservation StepKind = "observation"
	// StepResponse is the final answer; terminal.
	StepResponse StepKind = "response"
	// StepError is a provider or loop failure; terminal, never retried.
	StepError StepKind = "error"
	// StepLimit means the step or token budget ran out; terminal.
	StepLimit StepKind = "limit"
)

// Terminal reports whether a step ends the run.
func (k StepKind) Terminal() bool {
	return k == StepResponse || k == StepError || k == StepLimit
}

// Step is one entry in an agent run's transcript. RunID plus ID
// identifies a step: every step of one run carries the run's ID, and
// ID is the 1-based sequence number within it.
type Step struct {
	RunID      string         `json:"run_id"`
	ID         int            `json:"id"`
	Kind       StepKind       `json:"kind"`
	Content    string         `json:"content,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult string         `json:"tool_result,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Duration   time.Duration  `json:"duration,omitempty"`
	// Tokens is the total token usage of the LLM call that produced
	// this step, zero for tool steps.
	Tokens int `json:"tokens,omitempty"`
}

// Run states reported in a Summary.
const (
	StateCompleted    = "completed"
	StateError        = "error"
	StateLimitReached = "limit_reached"
)

// Summary condenses a finished run.
type Summary struct {
	TaskID      string `json:"task_id"`
	TotalSteps  int    `json:"total_steps"`
	TotalTokens int    `json:"total_tokens"`
	ToolCalls   int    `json:"tool_calls"`
	State       string `json:"state"`
	Steps       []Step `json:"steps"`
}

// transcriptCap bounds per-step content carried in a Summary.
const transcriptCap = 500

// Summarize builds a Summary from a run's collected steps, keyed by
// the run ID the steps carry. Step content is truncated so summaries
// stay small enough for transport.
func Summarize(steps []Step) Summary {
	s := Summary{
		TotalSteps: len(steps),
		State:      StateCompleted,
		Steps:      make([]Step, len(steps)),
	}
	if len(steps) > 0 {
		s.TaskID = steps[0].RunID
	}

	for i, step := range steps {
		s.TotalTokens += step.Tokens
		if step.Kind == StepToolCall {
			s.ToolCalls++
		}
		switch step.Kind {
		case StepError:
			s.State = StateError
		case StepLimit:
			s.State = StateLimitReached
		}

		trimmed := step
		trimmed.Content = truncate(step.Content, transcriptCap)
		trimmed.ToolResult = truncate(step.ToolResult, transcriptCap)
		s.Steps[i] = trimmed
	}

	return s
}

// truncate cuts s to at most n bytes on a rune boundary, appending an
// ellipsis when anything was dropped.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
