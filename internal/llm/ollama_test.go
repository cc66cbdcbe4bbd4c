package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLen  int
		wantName string
	}{
		{
			name:     "single object",
			content:  `{"name": "open_url", "arguments": {"url": "https://example.com"}}`,
			wantLen:  1,
			wantName: "open_url",
		},
		{
			name:     "array",
			content:  `[{"name": "get_system_info", "arguments": {"info_type": "time"}}, {"name": "open_application", "arguments": {"app_name": "chrome"}}]`,
			wantLen:  2,
			wantName: "get_system_info",
		},
		{
			name:     "tagged",
			content:  `<tool_call>{"name": "run_command", "arguments": {"command": "ls"}}</tool_call>`,
			wantLen:  1,
			wantName: "run_command",
		},
		{
			name:     "tagged without closing tag",
			content:  `<tool_call>{"name": "recall", "arguments": {"query": "birthday"}}`,
			wantLen:  1,
			wantName: "recall",
		},
		{name: "plain text", content: "The weather is sunny today.", wantLen: 0},
		{name: "empty", content: "", wantLen: 0},
		{name: "json without name", content: `{"foo": "bar"}`, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d calls, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Function.Name != tt.wantName {
				t.Errorf("first call = %q, want %q", got[0].Function.Name, tt.wantName)
			}
		})
	}
}

func TestOllamaChat_NonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model":   req.Model,
			"message": map[string]any{"role": "assistant", "content": "hi there"},
			"done":    true,

			"prompt_eval_count": 20,
			"eval_count":        5,
		})
	}))
	t.Cleanup(srv.Close)

	c := NewOllamaClient(srv.URL, nil)
	res, err := c.Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "hello"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Message.Content != "hi there" {
		t.Errorf("content = %q", res.Message.Content)
	}
	if res.InputTokens != 20 || res.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 20/5", res.InputTokens, res.OutputTokens)
	}
	if !res.Done {
		t.Error("expected Done")
	}
}

func TestOllamaChat_TextToolCallFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "llama3.2",
			"message": map[string]any{
				"role":    "assistant",
				"content": `<tool_call>{"name": "open_application", "arguments": {"app_name": "chrome"}}</tool_call>`,
			},
			"done": true,
		})
	}))
	t.Cleanup(srv.Close)

	c := NewOllamaClient(srv.URL, nil)
	res, err := c.Chat(context.Background(), "llama3.2", []Message{{Role: "user", Content: "open chrome"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(res.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(res.Message.ToolCalls))
	}
	if res.Message.ToolCalls[0].Function.Name != "open_application" {
		t.Errorf("tool = %q", res.Message.ToolCalls[0].Function.Name)
	}
	if res.Message.Content != "" {
		t.Errorf("content should be cleared, got %q", res.Message.Content)
	}
}

func TestOllamaCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": "llama3.2"}}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := NewOllamaClient(srv.URL, nil)
	if !c.CheckConnection(context.Background()) {
		t.Error("expected reachable")
	}

	models := c.ListModels(context.Background())
	if len(models) != 1 || models[0] != "llama3.2" {
		t.Errorf("models = %v", models)
	}

	srv.Close()
	if c.CheckConnection(context.Background()) {
		t.Error("expected unreachable after server close")
	}
}
