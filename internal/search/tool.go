package search

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler adapts mgr to the tool registry's handler signature,
// exposing web search to the agent.
func ToolHandler(mgr *Manager) func(ctx context.Context, args map[string]any) (string, error) {
	return func(ctx context.Context, args map[string]any) (string, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return "", fmt.Errorf("web_search: query is required")
		}

		var opts Options
		if count, ok := args["count"].(float64); ok && count > 0 {
			opts.Count = int(count)
		}
		if lang, ok := args["language"].(string); ok {
			opts.Language = lang
		}

		name := mgr.primary
		if p, ok := args["provider"].(string); ok && p != "" {
			name = p
		}
		results, err := mgr.SearchWith(ctx, name, query, opts)
		if err != nil {
			return "", err
		}

		// JSON keeps the results structured for the model; the plain
		// rendering is only a fallback.
		out, err := json.Marshal(results)
		if err != nil {
			return FormatResults(results), nil
		}
		return string(out), nil
	}
}

// ToolDefinition is the web_search parameter schema.
func ToolDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query string.",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (1-10). Default: 5.",
			},
			"language": map[string]any{
				"type":        "string",
				"description": "ISO 639-1 language code for results (e.g., 'en', 'de').",
			},
			"provider": map[string]any{
				"type":        "string",
				"description": "Search provider to use. Omit for default.",
			},
		},
		"required": []string{"query"},
	}
}
