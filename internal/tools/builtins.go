package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/email"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/fetch"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/memory"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/scheduler"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/search"
)

// memoryCategories are the accepted values for the remember tool.
var memoryCategories = map[string]bool{
	"fact": true, "preference": true, "task": true, "reminder": true,
}

// Deps are the collaborators the built-in tools need. Nil fields
// degrade the corresponding tools to a "not configured" result.
type Deps struct {
	Scheduler *scheduler.Scheduler
	Memory    *memory.Store
	Search    *search.Manager
	Email     *email.Sender
	Browser   *Browser
	Shell     *ShellExec
	Notes     *Notes
	Dynamic   *DynamicTooler
	Fetcher   *fetch.Fetcher
}

// RegisterBuiltins attaches the built-in tool set to the registry.
func RegisterBuiltins(r *Registry, deps Deps) {
	registerComputerTools(r)
	registerShellTools(r, deps.Shell)
	registerFileTools(r)
	registerMemoryTools(r, deps.Memory)
	registerScheduleTools(r, deps.Scheduler)
	registerSearchTool(r, deps.Search)
	registerFetchTool(r, deps.Fetcher)
	registerElevatedTools(r, deps)
}

func registerComputerTools(r *Registry) {
	r.Register(&Tool{
		Name:        "open_application",
		Description: "Open a desktop application by name. Examples: chrome, spotify, terminal.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"app_name": map[string]any{
					"type":        "string",
					"description": "Name of the application to open",
				},
			},
			"required": []string{"app_name"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			appName := argString(args, "app_name")
			if err := OpenApplication(ctx, appName); err != nil {
				return "", err
			}
			return fmt.Sprintf("Opened %s.", appName), nil
		},
	})

	r.Register(&Tool{
		Name:        "open_url",
		Description: "Open a URL in the default web browser.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to open",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			u := argString(args, "url")
			if err := OpenURL(ctx, u); err != nil {
				return "", err
			}
			return fmt.Sprintf("Opened %s in the browser.", u), nil
		},
	})

	r.Register(&Tool{
		Name:        "get_system_info",
		Description: "Report system information: time, date, battery, memory, or CPU.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"info_type": map[string]any{
					"type":        "string",
					"enum":        []string{"time", "date", "battery", "memory", "cpu", "all"},
					"description": "Which section to report (default: all)",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return SystemInfo(ctx, argString(args, "info_type")), nil
		},
	})
}

func registerShellTools(r *Registry, shell *ShellExec) {
	r.Register(&Tool{
		Name:        "run_command",
		Description: "Run a shell command and return its output. Destructive commands are refused.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to run",
				},
			},
			"required": []string{"command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if shell == nil {
				return "", fmt.Errorf("shell execution not configured")
			}
			command := argString(args, "command")
			if command == "" {
				return "", fmt.Errorf("command is required")
			}
			return shell.Exec(ctx, command, 2000)
		},
	})
}

func registerFileTools(r *Registry) {
	r.Register(&Tool{
		Name:        "read_file",
		Description: "Read a text file. System directories are off limits and long files are truncated.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of the file to read",
				},
			},
			"required": []string{"file_path"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return ReadFileCapped(argString(args, "file_path"))
		},
	})

	r.Register(&Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories. System directories are off limits.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The content to write",
				},
			},
			"required": []string{"file_path", "content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			path := argString(args, "file_path")
			if err := WriteFileChecked(path, argString(args, "content")); err != nil {
				return "", err
			}
			return fmt.Sprintf("Wrote %s.", path), nil
		},
	})
}

func registerMemoryTools(r *Registry, store *memory.Store) {
	r.Register(&Tool{
		Name:        "remember",
		Description: "Store a piece of information in long-term memory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"enum":        []string{"fact", "preference", "task", "reminder"},
					"description": "What kind of information this is",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The information to remember",
				},
				"importance": map[string]any{
					"type":        "integer",
					"description": "Importance from 1 (trivial) to 10 (critical). Default: 5.",
				},
			},
			"required": []string{"content"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if store == nil {
				return "", fmt.Errorf("memory not configured")
			}
			category := argString(args, "category")
			if category != "" && !memoryCategories[category] {
				return "", fmt.Errorf("category must be one of fact, preference, task, reminder")
			}
			importance := argFloat(args, "importance", 5) / 10
			fact, err := store.Remember(ctx, category, argString(args, "content"), importance)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Remembered (%s): %s", fact.Category, fact.Content), nil
		},
	})

	r.Register(&Tool{
		Name:        "recall",
		Description: "Recall previously remembered information relevant to a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Optional category filter (fact, preference, task, reminder)",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if store == nil {
				return "", fmt.Errorf("memory not configured")
			}
			query := argString(args, "query")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			facts, err := store.Recall(ctx, query, argString(args, "category"), 5)
			if err != nil {
				return "", err
			}
			if len(facts) == 0 {
				return "Nothing relevant in memory.", nil
			}
			var b strings.Builder
			for i, f := range facts {
				fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, f.Category, f.Content)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	})
}

func registerScheduleTools(r *Registry, sched *scheduler.Scheduler) {
	r.Register(&Tool{
		Name:        "schedule_task",
		Description: "Schedule a future or recurring action from a natural-language time phrase, e.g. 'in 10 minutes', 'every day at 8am'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "What to do when the task fires",
				},
				"schedule": map[string]any{
					"type":        "string",
					"description": "When to run, in natural language",
				},
			},
			"required": []string{"description", "schedule"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if sched == nil {
				return "", fmt.Errorf("scheduler not configured")
			}
			description := argString(args, "description")
			phrase := argString(args, "schedule")
			if description == "" || phrase == "" {
				return "", fmt.Errorf("description and schedule are required")
			}

			task, err := sched.CreateTaskFromPhrase(description, phrase, scheduler.Payload{
				Kind: scheduler.PayloadReminder,
				Data: map[string]any{"message": description},
			}, "agent")
			if err != nil {
				return "", err
			}

			next, _ := task.NextRun(time.Now())
			out, _ := json.Marshal(map[string]any{
				"task_id":     task.ID,
				"description": task.Name,
				"next_run":    next.Format(time.RFC3339),
				"status":      "scheduled",
			})
			return string(out), nil
		},
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "List scheduled tasks.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if sched == nil {
				return "", fmt.Errorf("scheduler not configured")
			}
			tasks, err := sched.ListTasks(false)
			if err != nil {
				return "", err
			}
			if len(tasks) == 0 {
				return "No scheduled tasks.", nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Found %d task(s):\n", len(tasks))
			for _, t := range tasks {
				status := "enabled"
				if !t.Enabled {
					status = "paused"
				}
				fmt.Fprintf(&b, "- %s (%s): %s", t.Name, t.ID[:8], status)
				if next, ok := t.NextRun(time.Now()); ok {
					fmt.Fprintf(&b, ", next: %s", next.Format("2006-01-02 15:04"))
				}
				b.WriteString("\n")
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	})

	r.Register(&Tool{
		Name:        "cancel_task",
		Description: "Cancel a scheduled task by its ID or ID prefix.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "The task ID (or unique prefix) to cancel",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if sched == nil {
				return "", fmt.Errorf("scheduler not configured")
			}
			taskID := argString(args, "task_id")
			if taskID == "" {
				return "", fmt.Errorf("task_id is required")
			}

			tasks, _ := sched.ListTasks(false)
			var found *scheduler.Task
			for _, t := range tasks {
				if t.ID == taskID || strings.HasPrefix(t.ID, taskID) {
					found = t
					break
				}
			}
			if found == nil {
				return "", fmt.Errorf("task not found: %s", taskID)
			}
			if err := sched.DeleteTask(found.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("Task '%s' cancelled.", found.Name), nil
		},
	})
}

func registerSearchTool(r *Registry, mgr *search.Manager) {
	r.Register(&Tool{
		Name:        "web_search",
		Description: "Search the web. Returns summarized results when a search API is configured, otherwise opens the search in the browser.",
		Parameters:  search.ToolDefinition(),
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query := argString(args, "query")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}

			if mgr != nil && mgr.Configured() {
				out, err := search.ToolHandler(mgr)(ctx, args)
				if err == nil {
					return out, nil
				}
				// API failure falls back to a browser open.
			}

			searchURL := "https://www.google.com/search?q=" + url.QueryEscape(query)
			if err := OpenURL(ctx, searchURL); err != nil {
				return "", err
			}
			return fmt.Sprintf("Opened a web search for %q in the browser.", query), nil
		},
	})
}

func registerFetchTool(r *Registry, fetcher *fetch.Fetcher) {
	r.Register(&Tool{
		Name:        "fetch_page",
		Description: "Download a web page and return its readable text, with scripts and navigation stripped.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Maximum characters to return (default: 8000)",
				},
			},
			"required": []string{"url"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if fetcher == nil {
				return "", fmt.Errorf("page fetching not configured")
			}
			u := argString(args, "url")
			if u == "" {
				return "", fmt.Errorf("url is required")
			}
			result, err := fetcher.Fetch(ctx, u, int(argFloat(args, "max_chars", 0)))
			if err != nil {
				return "", err
			}
			return result.Summary(), nil
		},
	})
}

func registerElevatedTools(r *Registry, deps Deps) {
	r.Register(&Tool{
		Name:        "execute_shell",
		Description: "Run a shell command with full access. Destructive patterns are still refused.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to run",
				},
			},
			"required": []string{"command"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Shell == nil {
				return "", fmt.Errorf("shell execution not configured")
			}
			command := argString(args, "command")
			if command == "" {
				return "", fmt.Errorf("command is required")
			}
			return deps.Shell.Exec(ctx, command, 20000)
		},
	})

	r.Register(&Tool{
		Name:        "read_file_system",
		Description: "Read any file or list any directory, without path restrictions.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory path",
				},
			},
			"required": []string{"path"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return ReadFileSystem(argString(args, "path"))
		},
	})

	r.Register(&Tool{
		Name:        "stealth_browser",
		Description: "Open a page in a controlled Chromium and return its title and text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to visit",
				},
				"headless": map[string]any{
					"type":        "boolean",
					"description": "Run without a visible window (default: true)",
				},
			},
			"required": []string{"url"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Browser == nil {
				return "", fmt.Errorf("browser not configured")
			}
			return deps.Browser.Visit(ctx, argString(args, "url"), argBool(args, "headless", true))
		},
	})

	r.Register(&Tool{
		Name:        "send_email",
		Description: "Send an email. The body is markdown and is delivered as both plain text and HTML.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient address, or multiple separated by commas",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Subject line",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Message body in markdown",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Email == nil {
				return "", fmt.Errorf("email not configured")
			}
			to := splitAddresses(argString(args, "to"))
			if len(to) == 0 {
				return "", fmt.Errorf("to is required")
			}
			err := deps.Email.Send(ctx, email.ComposeOptions{
				To:      to,
				Subject: argString(args, "subject"),
				Body:    argString(args, "body"),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Email sent to %s.", strings.Join(to, ", ")), nil
		},
	})

	r.Register(&Tool{
		Name:        "memory_note",
		Description: "Manage markdown notes organized by the PARA method (projects, areas, resources, archives). Actions: create, read, search, list.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{"create", "read", "search", "list"},
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Note title (create/read)",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Note content in markdown (create)",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "PARA category (create/list): projects, areas, resources, archives",
				},
				"query": map[string]any{
					"type":        "string",
					"description": "Search query (search)",
				},
			},
			"required": []string{"action"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Notes == nil {
				return "", fmt.Errorf("notes not configured")
			}
			switch argString(args, "action") {
			case "create":
				path, err := deps.Notes.Create(argString(args, "title"), argString(args, "content"), argString(args, "category"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Note saved to %s.", path), nil
			case "read":
				return deps.Notes.Read(argString(args, "title"))
			case "search":
				matches, err := deps.Notes.Search(argString(args, "query"))
				if err != nil {
					return "", err
				}
				if len(matches) == 0 {
					return "No matching notes.", nil
				}
				return strings.Join(matches, "\n"), nil
			case "list":
				titles, err := deps.Notes.List(argString(args, "category"))
				if err != nil {
					return "", err
				}
				if len(titles) == 0 {
					return "No notes yet.", nil
				}
				return strings.Join(titles, "\n"), nil
			default:
				return "", fmt.Errorf("action must be create, read, search, or list")
			}
		},
	})

	r.Register(&Tool{
		Name:        "create_tool",
		Description: "Create a new tool from Go source. The source must export ToolSpec (a map with description and parameters) and Execute(args map[string]any) (string, error). Only standard library imports are allowed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Tool name (snake_case)",
				},
				"source": map[string]any{
					"type":        "string",
					"description": "Complete Go source for the tool",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "What the tool does (used if the source omits one)",
				},
			},
			"required": []string{"name", "source"},
		},
		Elevated: true,
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			if deps.Dynamic == nil {
				return "", fmt.Errorf("dynamic tools not configured")
			}
			return deps.Dynamic.Create(argString(args, "name"), argString(args, "source"), argString(args, "description"))
		},
	})
}

// splitAddresses splits a comma-separated address list.
func splitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
