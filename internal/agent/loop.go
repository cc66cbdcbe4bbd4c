package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/config"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/llm"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/memory"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/prompts"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// Loop is the core agent execution loop.
type Loop struct {
	logger   *slog.Logger
	router   *llm.Router
	registry *tools.Registry
	memory   *memory.Store // nil disables persistence
	bus      *events.Bus

	maxSteps     int
	tokenBudget  int
	historyTurns int
	skills       string
}

// NewLoop creates an agent loop.
func NewLoop(logger *slog.Logger, router *llm.Router, registry *tools.Registry,
	mem *memory.Store, bus *events.Bus, cfg config.AgentConfig) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 50
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 100000
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	return &Loop{
		logger:       logger,
		router:       router,
		registry:     registry,
		memory:       mem,
		bus:          bus,
		maxSteps:     cfg.MaxSteps,
		tokenBudget:  cfg.TokenBudget,
		historyTurns: cfg.HistoryTurns,
	}
}

// SetSkills installs extra guidance text appended to every system
// prompt. Call before the first Run.
func (l *Loop) SetSkills(text string) {
	l.skills = text
}

// Run executes one agent task and streams its steps on the returned
// channel. The producer blocks when the consumer falls behind — steps
// are never dropped — and closes the channel after a terminal step.
func (l *Loop) Run(ctx context.Context, userMessage string, history []llm.Message, mode tools.Mode) <-chan Step {
	ch := make(chan Step, 8)
	go l.run(ctx, userMessage, history, mode, ch)
	return ch
}

func (l *Loop) run(ctx context.Context, userMessage string, history []llm.Message, mode tools.Mode, ch chan<- Step) {
	defer close(ch)

	runID := uuid.NewString()
	started := time.Now()
	l.bus.Emit(events.SourceAgent, events.KindRunStart, map[string]any{
		"run_id": runID, "mode": string(mode), "message_len": len(userMessage),
	})

	l.logger.Info("agent run started", "run_id", runID, "mode", mode)

	messages := l.seedMessages(userMessage, history, mode)
	toolDefs := l.registry.List(mode)

	stepID := 0
	totalTokens := 0
	state := StateCompleted

	emit := func(s Step) {
		stepID++
		s.RunID = runID
		s.ID = stepID
		s.Timestamp = time.Now()
		ch <- s
	}

	defer func() {
		l.bus.Emit(events.SourceAgent, events.KindRunComplete, map[string]any{
			"run_id":       runID,
			"state":        state,
			"steps":        stepID,
			"total_tokens": totalTokens,
			"elapsed_ms":   time.Since(started).Milliseconds(),
		})
		l.logger.Info("agent run finished",
			"run_id", runID, "state", state, "steps", stepID,
			"tokens", totalTokens, "elapsed", time.Since(started),
		)
	}()

	for {
		// Budget checks: steps first, then tokens.
		if stepID >= l.maxSteps {
			state = StateLimitReached
			emit(Step{Kind: StepLimit, Content: "Step limit reached before the task finished."})
			return
		}
		if totalTokens >= l.tokenBudget {
			state = StateLimitReached
			emit(Step{Kind: StepLimit, Content: "Token budget exhausted before the task finished."})
			return
		}
		if ctx.Err() != nil {
			state = StateError
			emit(Step{Kind: StepError, Content: "The task was cancelled."})
			return
		}

		l.bus.Emit(events.SourceAgent, events.KindLLMCall, map[string]any{
			"run_id": runID, "step": stepID,
		})
		callStart := time.Now()
		result := l.router.Chat(ctx, messages, toolDefs)
		totalTokens += result.TotalTokens()
		l.bus.Emit(events.SourceAgent, events.KindLLMResponse, map[string]any{
			"run_id":     runID,
			"step":       stepID,
			"model":      result.Model,
			"tokens_in":  result.InputTokens,
			"tokens_out": result.OutputTokens,
			"tool_calls": len(result.Message.ToolCalls),
		})

		// Provider failures terminate the run; no retry.
		if result.Err {
			state = StateError
			emit(Step{
				Kind:     StepError,
				Content:  result.Message.Content,
				Duration: time.Since(callStart),
				Tokens:   result.TotalTokens(),
			})
			return
		}

		if len(result.Message.ToolCalls) == 0 {
			emit(Step{
				Kind:     StepResponse,
				Content:  result.Message.Content,
				Duration: time.Since(callStart),
				Tokens:   result.TotalTokens(),
			})
			l.persist(userMessage, result.Message.Content)
			return
		}

		// Model asked for tools. Surface its interleaved reasoning,
		// then execute the calls in order.
		if result.Message.Content != "" {
			emit(Step{
				Kind:    StepThinking,
				Content: result.Message.Content,
				Tokens:  result.TotalTokens(),
			})
		}

		messages = append(messages, result.Message)

		for _, tc := range result.Message.ToolCalls {
			emit(Step{
				Kind:     StepToolCall,
				ToolName: tc.Function.Name,
				ToolArgs: tc.Function.Arguments,
			})

			toolStart := time.Now()
			observation := l.registry.Execute(ctx, mode, tc.Function.Name, tc.Function.Arguments)
			emit(Step{
				Kind:       StepObservation,
				ToolName:   tc.Function.Name,
				ToolResult: observation,
				Duration:   time.Since(toolStart),
			})

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    observation,
				ToolCallID: tc.ID,
			})
		}
	}
}

// seedMessages builds the initial conversation: system prompt, the
// trailing history window, then the user's message.
func (l *Loop) seedMessages(userMessage string, history []llm.Message, mode tools.Mode) []llm.Message {
	system := prompts.SystemPrompt(mode == tools.ModeJarvis, time.Now())
	if l.skills != "" {
		system += "\n\n## Skills\n" + l.skills
	}
	messages := []llm.Message{{Role: "system", Content: system}}

	// Trailing window: a turn is a user/assistant pair.
	maxMsgs := l.historyTurns * 2
	if len(history) > maxMsgs {
		history = history[len(history)-maxMsgs:]
	}
	messages = append(messages, history...)

	return append(messages, llm.Message{Role: "user", Content: userMessage})
}

// persist stores the finished exchange. Fire and forget: memory
// failures never fail a run.
func (l *Loop) persist(userMessage, response string) {
	if l.memory == nil {
		return
	}
	go func() {
		if err := l.memory.StoreConversation(userMessage, response); err != nil {
			l.logger.Warn("failed to persist conversation", "error", err)
		}
	}()
}

// History loads the memory store's recent turns as chat messages,
// ready to pass to Run. Returns nil without a memory store.
func (l *Loop) History() []llm.Message {
	if l.memory == nil {
		return nil
	}
	turns, err := l.memory.RecentTurns(l.historyTurns)
	if err != nil {
		l.logger.Warn("failed to load history", "error", err)
		return nil
	}
	var messages []llm.Message
	for _, t := range turns {
		messages = append(messages,
			llm.Message{Role: "user", Content: t.User},
			llm.Message{Role: "assistant", Content: t.Assistant},
		)
	}
	return messages
}
