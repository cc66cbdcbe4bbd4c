// Package api implements the HTTP and WebSocket interface to the
// assistant: chat, provider control, and scheduled-task management.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/agent"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/buildinfo"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/llm"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/scheduler"
	"github.com/Endsi3g/AI-Assistant-Computer/internal/tools"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	logger  *slog.Logger

	loop   *agent.Loop
	router *llm.Router
	sched  *scheduler.Scheduler
	bus    *events.Bus
	mode   tools.Mode

	server *http.Server
}

// NewServer creates an API server. mode selects the tool set chat
// requests run with.
func NewServer(address string, port int, loop *agent.Loop, rtr *llm.Router,
	sched *scheduler.Scheduler, bus *events.Bus, mode tools.Mode, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		logger:  logger,
		loop:    loop,
		router:  rtr,
		sched:   sched,
		bus:     bus,
		mode:    mode,
	}
}

// Handler builds the route table. Split out from Start so tests can
// drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/agent/ws", s.handleAgentWS)

	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("POST /api/providers/switch", s.handleProviderSwitch)
	mux.HandleFunc("GET /api/models", s.handleModels)

	mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	mux.HandleFunc("POST /api/tasks/{id}/pause", s.handleTaskPause)
	mux.HandleFunc("POST /api/tasks/{id}/resume", s.handleTaskResume)
	mux.HandleFunc("POST /api/tasks/{id}/trigger", s.handleTaskTrigger)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)

	mux.HandleFunc("GET /api/events/ws", s.handleEventsWS)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket and long chat runs manage their own deadlines
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Jarvis",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message string `json:"message"`
	// Mode optionally overrides the server's default tool mode
	// ("standard" or "jarvis"). Jarvis mode is refused unless the
	// server itself runs elevated.
	Mode string `json:"mode,omitempty"`
}

// ChatResponse is the POST /api/chat reply: the final answer plus the
// run transcript summary.
type ChatResponse struct {
	Response string        `json:"response"`
	State    string        `json:"state"`
	Summary  agent.Summary `json:"summary"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	mode, err := s.resolveMode(req.Mode)
	if err != nil {
		s.errorResponse(w, http.StatusForbidden, err.Error())
		return
	}

	var steps []agent.Step
	for step := range s.loop.Run(r.Context(), req.Message, s.loop.History(), mode) {
		steps = append(steps, step)
	}

	summary := agent.Summarize(steps)
	resp := ChatResponse{State: summary.State, Summary: summary}
	for _, step := range steps {
		if step.Kind == agent.StepResponse || step.Kind == agent.StepError {
			resp.Response = step.Content
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// resolveMode maps a request's mode string onto the server's tool mode.
// Clients may step down to standard but never up to jarvis.
func (s *Server) resolveMode(requested string) (tools.Mode, error) {
	switch requested {
	case "":
		return s.mode, nil
	case string(tools.ModeStandard):
		return tools.ModeStandard, nil
	case string(tools.ModeJarvis):
		if s.mode != tools.ModeJarvis {
			return "", fmt.Errorf("jarvis mode is not enabled on this server")
		}
		return tools.ModeJarvis, nil
	default:
		return "", fmt.Errorf("unknown mode %q", requested)
	}
}

// Provider endpoints

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.router.Status(), s.logger)
}

type providerSwitchRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleProviderSwitch(w http.ResponseWriter, r *http.Request) {
	var req providerSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider == "" {
		s.errorResponse(w, http.StatusBadRequest, "provider is required")
		return
	}

	if !s.router.SetProvider(req.Provider, req.Model) {
		s.errorResponse(w, http.StatusNotFound, "provider not registered: "+req.Provider)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.router.Status(), s.logger)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.router.ListAllModels(r.Context()), s.logger)
}

// Task endpoints

// TaskCreateRequest is the POST /api/tasks body. Schedule is a natural
// language phrase ("every 2 hours", "tomorrow at 9am").
type TaskCreateRequest struct {
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	// ActionType selects the payload: speak, command, or reminder
	// (default reminder).
	ActionType string         `json:"action_type,omitempty"`
	ActionData map[string]any `json:"action_data,omitempty"`
}

// TaskCreateResponse is the POST /api/tasks reply, matching what the
// schedule_task tool reports to the model.
type TaskCreateResponse struct {
	TaskID      string  `json:"task_id"`
	Description string  `json:"description"`
	NextRun     *string `json:"next_run"` // RFC3339, null when none
	Status      string  `json:"status"`   // scheduled or error
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" || req.Schedule == "" {
		s.errorResponse(w, http.StatusBadRequest, "description and schedule are required")
		return
	}

	kind := scheduler.PayloadReminder
	switch req.ActionType {
	case "", string(scheduler.PayloadReminder):
	case string(scheduler.PayloadSpeak):
		kind = scheduler.PayloadSpeak
	case string(scheduler.PayloadCommand):
		kind = scheduler.PayloadCommand
	default:
		s.errorResponse(w, http.StatusBadRequest, "unknown action type: "+req.ActionType)
		return
	}

	data := req.ActionData
	if data == nil {
		data = map[string]any{"message": req.Description}
	}

	payload := scheduler.Payload{Kind: kind, Data: data}
	task, err := s.sched.CreateTaskFromPhrase(req.Description, req.Schedule, payload, "api")
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, TaskCreateResponse{Description: req.Description, Status: "error"}, s.logger)
		return
	}

	resp := TaskCreateResponse{TaskID: task.ID, Description: task.Name, Status: "scheduled"}
	if next, ok := task.NextRun(time.Now()); ok {
		formatted := next.Format(time.RFC3339)
		resp.NextRun = &formatted
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	tasks, err := s.sched.ListTasks(r.URL.Query().Get("enabled") == "true")
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "list tasks: "+err.Error())
		return
	}

	views := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		views[i] = taskView(t)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"tasks": views, "count": len(views)}, s.logger)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	id := r.PathValue("id")
	task, err := s.sched.GetTask(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "task not found")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	executions, err := s.sched.GetTaskExecutions(id, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "list executions: "+err.Error())
		return
	}

	view := taskView(task)
	view["executions"] = executions

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, view, s.logger)
}

func (s *Server) handleTaskPause(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, "paused", s.sched.PauseTask)
}

func (s *Server) handleTaskResume(w http.ResponseWriter, r *http.Request) {
	s.taskAction(w, r, "resumed", s.sched.ResumeTask)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	if err := s.sched.DeleteTask(r.PathValue("id")); err != nil {
		s.errorResponse(w, http.StatusNotFound, "delete task: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskTrigger(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	execution, err := s.sched.TriggerTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "trigger task: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, execution, s.logger)
}

func (s *Server) taskAction(w http.ResponseWriter, r *http.Request, status string, action func(string) error) {
	if s.sched == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	id := r.PathValue("id")
	if err := action(id); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"task_id": id, "status": status}, s.logger)
}

// taskView flattens a task for API responses, adding the computed next
// fire time. next_run is always present, null when nothing is due.
func taskView(t *scheduler.Task) map[string]any {
	var next any
	if n, ok := t.NextRun(time.Now()); ok {
		next = n
	}
	return map[string]any{
		"id":         t.ID,
		"name":       t.Name,
		"schedule":   t.Schedule,
		"payload":    t.Payload,
		"enabled":    t.Enabled,
		"created_at": t.CreatedAt,
		"created_by": t.CreatedBy,
		"next_run":   next,
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
