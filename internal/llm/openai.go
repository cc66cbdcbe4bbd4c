package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Default endpoints for the OpenAI-compatible providers.
const (
	openAIBaseURL     = "https://api.openai.com/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

// OpenAICompatClient is a Provider for any service speaking the OpenAI
// chat-completions protocol. One adapter type serves the "openai",
// "groq", and "perplexity" provider names; only the base URL and
// credentials differ.
type OpenAICompatClient struct {
	name   string
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a provider for api.openai.com.
func NewOpenAIClient(apiKey string, logger *slog.Logger) *OpenAICompatClient {
	return NewOpenAICompatClient("openai", openAIBaseURL, apiKey, logger)
}

// NewGroqClient creates a provider for Groq's OpenAI-compatible endpoint.
func NewGroqClient(apiKey string, logger *slog.Logger) *OpenAICompatClient {
	return NewOpenAICompatClient("groq", groqBaseURL, apiKey, logger)
}

// NewPerplexityClient creates a provider for Perplexity's endpoint.
func NewPerplexityClient(apiKey string, logger *slog.Logger) *OpenAICompatClient {
	return NewOpenAICompatClient("perplexity", perplexityBaseURL, apiKey, logger)
}

// NewOpenAICompatClient creates a provider with an explicit name and
// base URL.
func NewOpenAICompatClient(name, baseURL, apiKey string, logger *slog.Logger) *OpenAICompatClient {
	if logger == nil {
		logger = slog.Default()
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)
	return &OpenAICompatClient{
		name:   name,
		client: client,
		logger: logger.With("provider", name),
	}
}

// Name implements Provider.
func (c *OpenAICompatClient) Name() string { return c.name }

// Close implements Provider. Nothing to release.
func (c *OpenAICompatClient) Close() {}

// Chat sends a non-streaming chat completion request.
func (c *OpenAICompatClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResult, error) {
	started := time.Now()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertToOpenAI(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertToolsToOpenAI(tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat: empty response", c.name)
	}

	choice := resp.Choices[0]
	result := &ChatResult{
		Model: resp.Model,
		Message: Message{
			Role:    "assistant",
			Content: choice.Message.Content,
		},
		Done:         true,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Elapsed:      time.Since(started),
	}

	for _, tc := range choice.Message.ToolCalls {
		result.Message.ToolCalls = append(result.Message.ToolCalls,
			NewToolCall(tc.ID, tc.Function.Name, parseArguments(tc.Function.Arguments)))
	}

	// Some models leak the tool call into content instead of tool_calls.
	if len(result.Message.ToolCalls) == 0 && result.Message.Content != "" {
		if parsed := parseTextToolCalls(result.Message.Content); len(parsed) > 0 {
			result.Message.ToolCalls = parsed
			result.Message.Content = ""
		}
	}

	c.logger.Debug("chat complete",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)

	return result, nil
}

// ChatStream sends a streaming chat request, forwarding tokens to the
// callback and accumulating the full completion.
func (c *OpenAICompatClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResult, error) {
	if callback == nil {
		return c.Chat(ctx, model, messages, tools)
	}
	started := time.Now()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertToOpenAI(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertToolsToOpenAI(tools)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			tc := NewToolCall(tool.ID, tool.Name, parseArguments(tool.Arguments))
			callback(StreamEvent{Kind: KindToolCallStart, ToolCall: &tc})
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			callback(StreamEvent{Kind: KindToken, Token: chunk.Choices[0].Delta.Content})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%s stream: %w", c.name, err)
	}

	result := &ChatResult{
		Model:        acc.Model,
		Message:      Message{Role: "assistant"},
		Done:         true,
		InputTokens:  int(acc.Usage.PromptTokens),
		OutputTokens: int(acc.Usage.CompletionTokens),
		Elapsed:      time.Since(started),
	}
	if len(acc.Choices) > 0 {
		msg := acc.Choices[0].Message
		result.Message.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			result.Message.ToolCalls = append(result.Message.ToolCalls,
				NewToolCall(tc.ID, tc.Function.Name, parseArguments(tc.Function.Arguments)))
		}
	}

	if len(result.Message.ToolCalls) == 0 && result.Message.Content != "" {
		if parsed := parseTextToolCalls(result.Message.Content); len(parsed) > 0 {
			result.Message.ToolCalls = parsed
			result.Message.Content = ""
		}
	}

	return result, nil
}

// CheckConnection implements Provider. The models endpoint is the
// cheapest authenticated probe; providers that don't expose it
// (Perplexity) get a minimal one-token completion instead.
func (c *OpenAICompatClient) CheckConnection(ctx context.Context) bool {
	if _, err := c.client.Models.List(ctx); err == nil {
		return true
	}

	_, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel("sonar"),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxCompletionTokens: openai.Int(1),
	})
	return err == nil
}

// ListModels implements Provider.
func (c *OpenAICompatClient) ListModels(ctx context.Context) []string {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names
}

// parseArguments decodes the JSON argument string the protocol carries.
// Malformed arguments become an empty map so tool dispatch still runs.
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}

// convertToOpenAI converts internal messages to SDK params. Assistant
// messages replay their tool calls so multi-step tool exchanges keep
// their structure.
func convertToOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content))

		case "assistant":
			if len(msg.ToolCalls) == 0 {
				result = append(result, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for i, tc := range msg.ToolCalls {
				id := tc.ID
				if id == "" {
					id = fmt.Sprintf("call_%s_%d", tc.Function.Name, i)
				}
				argsJSON, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					argsJSON = []byte("{}")
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: id,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: string(argsJSON),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case "tool":
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content))

		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

// convertToolsToOpenAI converts registry tool definitions to SDK params.
func convertToolsToOpenAI(tools []map[string]any) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]any)
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		result = append(result, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        name,
			Description: openai.String(desc),
			Parameters:  openai.FunctionParameters(params),
		}))
	}
	return result
}
