package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/agent"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/config"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/llm"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/scheduler"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// cannedProvider always answers with the same text.
type cannedProvider struct {
	reply string
}

func (p *cannedProvider) Name() string                         { return "groq" }
func (p *cannedProvider) CheckConnection(context.Context) bool { return true }
func (p *cannedProvider) ListModels(context.Context) []string  { return []string{"test-model"} }
func (p *cannedProvider) Close()                               {}

func (p *cannedProvider) Chat(context.Context, string, []llm.Message, []map[string]any) (*llm.ChatResult, error) {
	return &llm.ChatResult{
		Model:        "test-model",
		Message:      llm.Message{Role: "assistant", Content: p.reply},
		Done:         true,
		InputTokens:  5,
		OutputTokens: 5,
	}, nil
}

func (p *cannedProvider) ChatStream(ctx context.Context, model string, messages []llm.Message, tools []map[string]any, _ llm.StreamCallback) (*llm.ChatResult, error) {
	return p.Chat(ctx, model, messages, tools)
}

func newTestServer(t *testing.T, mode tools.Mode) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := llm.NewRouter(logger, nil)
	router.Register(&cannedProvider{reply: "Done, sir."}, "test-model")
	router.Initialize(context.Background(), "groq")

	registry := tools.NewRegistry(logger, nil)
	loop := agent.NewLoop(logger, router, registry, nil, nil, config.AgentConfig{})

	store, err := scheduler.NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sched := scheduler.New(logger, nil, store, func(context.Context, *scheduler.Task, *scheduler.Execution) error {
		return nil
	})
	t.Cleanup(sched.Stop)

	bus := events.New()
	srv := NewServer("", 0, loop, router, sched, bus, mode, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	var body map[string]string
	if code := getJSON(t, ts.URL+"/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestChat(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	var resp ChatResponse
	code := postJSON(t, ts.URL+"/api/chat", ChatRequest{Message: "hello"}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Response != "Done, sir." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.State != agent.StateCompleted {
		t.Errorf("state = %q", resp.State)
	}
	if resp.Summary.TotalSteps != 1 {
		t.Errorf("summary steps = %d", resp.Summary.TotalSteps)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	if code := postJSON(t, ts.URL+"/api/chat", ChatRequest{}, nil); code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestChat_JarvisModeRefusedOnStandardServer(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	code := postJSON(t, ts.URL+"/api/chat", ChatRequest{Message: "x", Mode: "jarvis"}, nil)
	if code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", code)
	}
}

func TestChat_JarvisModeAllowedOnElevatedServer(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeJarvis)

	code := postJSON(t, ts.URL+"/api/chat", ChatRequest{Message: "x", Mode: "jarvis"}, nil)
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestProviders(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	var status llm.RouterStatus
	if code := getJSON(t, ts.URL+"/api/providers", &status); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if status.Active != "groq" {
		t.Errorf("active = %q", status.Active)
	}

	code := postJSON(t, ts.URL+"/api/providers/switch",
		providerSwitchRequest{Provider: "nonexistent"}, nil)
	if code != http.StatusNotFound {
		t.Errorf("switch to unknown provider: status = %d, want 404", code)
	}

	var after llm.RouterStatus
	postJSON(t, ts.URL+"/api/providers/switch",
		providerSwitchRequest{Provider: "groq", Model: "other-model"}, &after)
	if after.Model != "other-model" {
		t.Errorf("model after switch = %q", after.Model)
	}
}

func TestTaskLifecycle(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	var created TaskCreateResponse
	code := postJSON(t, ts.URL+"/api/tasks", TaskCreateRequest{
		Description: "morning briefing",
		Schedule:    "every 2 hours",
		ActionType:  "speak",
		ActionData:  map[string]any{"message": "Good morning, sir."},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.TaskID == "" {
		t.Fatalf("no task id in %+v", created)
	}
	if created.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled", created.Status)
	}
	if created.Description != "morning briefing" {
		t.Errorf("description = %q", created.Description)
	}
	if created.NextRun == nil {
		t.Error("created task has no next_run")
	} else if _, err := time.Parse(time.RFC3339, *created.NextRun); err != nil {
		t.Errorf("next_run %q is not RFC3339: %v", *created.NextRun, err)
	}
	id := created.TaskID

	var list struct {
		Count int `json:"count"`
	}
	getJSON(t, ts.URL+"/api/tasks", &list)
	if list.Count != 1 {
		t.Errorf("task count = %d", list.Count)
	}

	var acted map[string]string
	if code := postJSON(t, ts.URL+"/api/tasks/"+id+"/pause", nil, &acted); code != http.StatusOK {
		t.Fatalf("pause status = %d", code)
	}
	if acted["status"] != "paused" {
		t.Errorf("pause result = %v", acted)
	}
	if code := postJSON(t, ts.URL+"/api/tasks/"+id+"/resume", nil, nil); code != http.StatusOK {
		t.Errorf("resume failed")
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/tasks/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	getJSON(t, ts.URL+"/api/tasks", &list)
	if list.Count != 0 {
		t.Errorf("task count after delete = %d", list.Count)
	}
}

func TestTaskCreate_BadActionType(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	code := postJSON(t, ts.URL+"/api/tasks", TaskCreateRequest{
		Description: "x", Schedule: "in 1 minute", ActionType: "explode",
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

// ActionData is optional; the description stands in as the payload
// message, and task views always carry a next_run key.
func TestTaskCreate_DefaultActionData(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	var created TaskCreateResponse
	code := postJSON(t, ts.URL+"/api/tasks", TaskCreateRequest{
		Description: "stretch break",
		Schedule:    "in 10 minutes",
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}

	var view map[string]any
	if code := getJSON(t, ts.URL+"/api/tasks/"+created.TaskID, &view); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if _, ok := view["next_run"]; !ok {
		t.Error("task view missing next_run key")
	}
	payload, _ := view["payload"].(map[string]any)
	data, _ := payload["data"].(map[string]any)
	if data["message"] != "stretch break" {
		t.Errorf("payload data = %v, want description as message", data)
	}
}

func TestAgentWS_StreamsStepsAndSummary(t *testing.T) {
	_, ts := newTestServer(t, tools.ModeStandard)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/agent/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ChatRequest{Message: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var frames []wsFrame
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		frames = append(frames, frame)
		if frame.Type == "summary" {
			break
		}
	}

	if len(frames) != 2 {
		t.Fatalf("frames = %d, want step + summary", len(frames))
	}
	if frames[0].Type != "step" || frames[0].Step.Kind != agent.StepResponse {
		t.Errorf("frame 1 = %+v", frames[0])
	}
	if frames[1].Summary.State != agent.StateCompleted {
		t.Errorf("summary = %+v", frames[1].Summary)
	}
	if frames[0].Step.RunID == "" || frames[1].Summary.TaskID != frames[0].Step.RunID {
		t.Errorf("summary task ID %q does not match step run ID %q",
			frames[1].Summary.TaskID, frames[0].Step.RunID)
	}
}

func TestEventsWS_ReceivesBusEvents(t *testing.T) {
	srv, ts := newTestServer(t, tools.ModeStandard)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription happens in the handler goroutine; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for srv.bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.bus.Emit(events.SourceTools, events.KindToolDone, map[string]any{"tool": "noop"})

	var event events.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Source != events.SourceTools || event.Kind != events.KindToolDone {
		t.Errorf("event = %+v", event)
	}
}
