package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/config"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/llm"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// scriptedProvider returns canned results in order, then repeats the
// last one.
type scriptedProvider struct {
	results []*llm.ChatResult
	errs    []error
	calls   int
}

func (p *scriptedProvider) Name() string                           { return "scripted" }
func (p *scriptedProvider) CheckConnection(context.Context) bool   { return true }
func (p *scriptedProvider) ListModels(context.Context) []string    { return []string{"test-model"} }
func (p *scriptedProvider) Close()                                 {}

func (p *scriptedProvider) Chat(_ context.Context, _ string, _ []llm.Message, _ []map[string]any) (*llm.ChatResult, error) {
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return p.results[i], nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, model string, messages []llm.Message, tools []map[string]any, _ llm.StreamCallback) (*llm.ChatResult, error) {
	return p.Chat(ctx, model, messages, tools)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(t *testing.T, provider llm.Provider, cfg config.AgentConfig) (*Loop, *tools.Registry) {
	t.Helper()

	router := llm.NewRouter(testLogger(), nil)
	router.Register(provider, "test-model")
	router.Initialize(context.Background(), "scripted")

	registry := tools.NewRegistry(testLogger(), nil)
	loop := NewLoop(testLogger(), router, registry, nil, nil, cfg)
	return loop, registry
}

func collect(t *testing.T, ch <-chan Step) []Step {
	t.Helper()
	var steps []Step
	for s := range ch {
		steps = append(steps, s)
	}
	return steps
}

func textResult(content string) *llm.ChatResult {
	return &llm.ChatResult{
		Model:        "test-model",
		Message:      llm.Message{Role: "assistant", Content: content},
		Done:         true,
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func toolResult(name string, args map[string]any) *llm.ChatResult {
	return &llm.ChatResult{
		Model: "test-model",
		Message: llm.Message{
			Role:      "assistant",
			ToolCalls: []llm.ToolCall{llm.NewToolCall("call_1", name, args)},
		},
		Done:         true,
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func TestRun_OpenChromeScenario(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.ChatResult{
		toolResult("open_application", map[string]any{"app_name": "chrome"}),
		textResult("Done, sir."),
	}}
	loop, registry := newTestLoop(t, provider, config.AgentConfig{})

	var opened string
	registry.Register(&tools.Tool{
		Name: "open_application",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			opened, _ = args["app_name"].(string)
			return "Opened chrome.", nil
		},
	})

	steps := collect(t, loop.Run(context.Background(), "open chrome", nil, tools.ModeStandard))

	if len(steps) != 3 {
		t.Fatalf("steps = %d, want 3: %+v", len(steps), steps)
	}
	if steps[0].Kind != StepToolCall || steps[0].ToolName != "open_application" {
		t.Errorf("step 1 = %+v", steps[0])
	}
	if steps[1].Kind != StepObservation || steps[1].ToolResult != "Opened chrome." {
		t.Errorf("step 2 = %+v", steps[1])
	}
	if steps[2].Kind != StepResponse || steps[2].Content != "Done, sir." {
		t.Errorf("step 3 = %+v", steps[2])
	}
	if opened != "chrome" {
		t.Errorf("tool saw app_name = %q", opened)
	}

	sum := Summarize(steps)
	if sum.ToolCalls != 1 || sum.TotalSteps != 3 || sum.State != StateCompleted {
		t.Errorf("summary = %+v", sum)
	}
	if sum.TotalTokens != 30 {
		t.Errorf("total tokens = %d, want 30", sum.TotalTokens)
	}
}

// Every step carries the run's ID, step IDs count up from 1, and the
// summary is keyed by that same run ID.
func TestRun_StepsShareRunID(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.ChatResult{
		toolResult("noop", map[string]any{}),
		textResult("done"),
	}}
	loop, registry := newTestLoop(t, provider, config.AgentConfig{})
	registry.Register(&tools.Tool{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	steps := collect(t, loop.Run(context.Background(), "do it", nil, tools.ModeStandard))

	if len(steps) == 0 || steps[0].RunID == "" {
		t.Fatalf("steps carry no run ID: %+v", steps)
	}
	for i, s := range steps {
		if s.RunID != steps[0].RunID {
			t.Errorf("step %d run ID = %q, want %q", i, s.RunID, steps[0].RunID)
		}
		if s.ID != i+1 {
			t.Errorf("step %d ID = %d, want %d", i, s.ID, i+1)
		}
	}

	if sum := Summarize(steps); sum.TaskID != steps[0].RunID {
		t.Errorf("summary task ID = %q, want run ID %q", sum.TaskID, steps[0].RunID)
	}
}

func TestRun_ProviderErrorIsTerminal(t *testing.T) {
	provider := &scriptedProvider{
		results: []*llm.ChatResult{textResult("never sent")},
		errs:    []error{fmt.Errorf("connection refused")},
	}
	loop, _ := newTestLoop(t, provider, config.AgentConfig{})

	steps := collect(t, loop.Run(context.Background(), "hello", nil, tools.ModeStandard))

	if len(steps) != 1 {
		t.Fatalf("steps = %d, want 1 (no retry)", len(steps))
	}
	if steps[0].Kind != StepError {
		t.Errorf("kind = %q", steps[0].Kind)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}

	if sum := Summarize(steps); sum.State != StateError {
		t.Errorf("state = %q", sum.State)
	}
}

func TestRun_StepLimit(t *testing.T) {
	// Always asks for another tool call; never answers.
	provider := &scriptedProvider{results: []*llm.ChatResult{
		toolResult("noop", map[string]any{}),
	}}
	loop, registry := newTestLoop(t, provider, config.AgentConfig{MaxSteps: 6})
	registry.Register(&tools.Tool{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	steps := collect(t, loop.Run(context.Background(), "loop forever", nil, tools.ModeStandard))

	last := steps[len(steps)-1]
	if last.Kind != StepLimit {
		t.Fatalf("last step = %q, want limit", last.Kind)
	}
	if len(steps) > 7 {
		t.Errorf("steps = %d, budget not enforced", len(steps))
	}
	if sum := Summarize(steps); sum.State != StateLimitReached {
		t.Errorf("state = %q", sum.State)
	}
}

func TestRun_TokenBudget(t *testing.T) {
	big := toolResult("noop", map[string]any{})
	big.InputTokens = 900
	big.OutputTokens = 200
	provider := &scriptedProvider{results: []*llm.ChatResult{big}}

	loop, registry := newTestLoop(t, provider, config.AgentConfig{TokenBudget: 1000})
	registry.Register(&tools.Tool{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	steps := collect(t, loop.Run(context.Background(), "expensive", nil, tools.ModeStandard))

	last := steps[len(steps)-1]
	if last.Kind != StepLimit {
		t.Fatalf("last step = %q, want limit after one call", last.Kind)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestRun_ThinkingStepForInterleavedContent(t *testing.T) {
	withThought := toolResult("noop", map[string]any{})
	withThought.Message.Content = "Let me check that."
	provider := &scriptedProvider{results: []*llm.ChatResult{
		withThought,
		textResult("All set."),
	}}
	loop, registry := newTestLoop(t, provider, config.AgentConfig{})
	registry.Register(&tools.Tool{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	})

	steps := collect(t, loop.Run(context.Background(), "check", nil, tools.ModeStandard))

	if len(steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(steps))
	}
	if steps[0].Kind != StepThinking || steps[0].Content != "Let me check that." {
		t.Errorf("step 1 = %+v", steps[0])
	}
}

func TestSeedMessages_HistoryWindow(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.ChatResult{textResult("hi")}}
	loop, _ := newTestLoop(t, provider, config.AgentConfig{HistoryTurns: 1})

	var history []llm.Message
	for i := 0; i < 5; i++ {
		history = append(history,
			llm.Message{Role: "user", Content: fmt.Sprintf("q%d", i)},
			llm.Message{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
		)
	}

	messages := loop.seedMessages("now", history, tools.ModeStandard)

	// system + 1 turn (2 msgs) + user.
	if len(messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("first role = %q", messages[0].Role)
	}
	if messages[1].Content != "q4" || messages[2].Content != "a4" {
		t.Errorf("window kept %q/%q, want latest turn", messages[1].Content, messages[2].Content)
	}
	if messages[3].Content != "now" {
		t.Errorf("last = %q", messages[3].Content)
	}
}

func TestSeedMessages_AppendsSkills(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.ChatResult{textResult("hi")}}
	loop, _ := newTestLoop(t, provider, config.AgentConfig{})
	loop.SetSkills("When asked about weather, use web_search.")

	messages := loop.seedMessages("hello", nil, tools.ModeStandard)

	system := messages[0].Content
	if !strings.Contains(system, "## Skills") {
		t.Error("system prompt missing skills section")
	}
	if !strings.Contains(system, "use web_search") {
		t.Error("system prompt missing skill content")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	provider := &scriptedProvider{results: []*llm.ChatResult{textResult("x")}}
	loop, _ := newTestLoop(t, provider, config.AgentConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := collect(t, loop.Run(ctx, "hello", nil, tools.ModeStandard))
	if len(steps) != 1 || steps[0].Kind != StepError {
		t.Errorf("steps = %+v, want single error step", steps)
	}
}
