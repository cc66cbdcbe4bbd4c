package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Endsi3g/AI-Assistant-Computer/internal/events"
)

// ExecuteFunc carries out a fired task. The execution record is
// already persisted when it runs; implementations may set
// execution.Result.
type ExecuteFunc func(ctx context.Context, task *Task, execution *Execution) error

// Scheduler arms one timer per enabled task and records every run in
// the store.
type Scheduler struct {
	logger  *slog.Logger
	bus     *events.Bus
	store   *Store
	execute ExecuteFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer // taskID -> timer
	running bool
	wg      sync.WaitGroup
}

// New creates a new scheduler. The bus may be nil.
func New(logger *slog.Logger, bus *events.Bus, store *Store, execute ExecuteFunc) *Scheduler {
	return &Scheduler{
		logger:  logger,
		bus:     bus,
		store:   store,
		execute: execute,
		timers:  make(map[string]*time.Timer),
	}
}

// Start arms timers for every enabled task and settles executions that
// were left pending by a previous run. Idempotent.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	tasks, err := s.store.ListTasks(true)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		s.scheduleTask(task)
	}
	s.logger.Debug("scheduler started", "tasks", len(tasks))

	s.checkMissedExecutions(ctx)
	return nil
}

// Stop cancels all timers and waits for in-flight executions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// CreateTask adds a new task and schedules it.
func (s *Scheduler) CreateTask(task *Task) error {
	if err := s.store.CreateTask(task); err != nil {
		return err
	}

	if task.Enabled {
		s.scheduleTask(task)
	}

	s.logger.Info("task created",
		"id", task.ID,
		"name", task.Name,
		"schedule", task.Schedule.Kind,
	)

	return nil
}

// CreateTaskFromPhrase parses a natural-language schedule phrase and
// creates the task in one step. This is the path the agent's
// schedule_task tool takes.
func (s *Scheduler) CreateTaskFromPhrase(name, phrase string, payload Payload, createdBy string) (*Task, error) {
	task := &Task{
		Name:      name,
		Schedule:  ParseSchedule(phrase, time.Now()),
		Payload:   payload,
		Enabled:   true,
		CreatedBy: createdBy,
	}
	if err := s.CreateTask(task); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask persists task and re-arms its timer.
func (s *Scheduler) UpdateTask(task *Task) error {
	if err := s.store.UpdateTask(task); err != nil {
		return err
	}
	s.cancelTimer(task.ID)
	if task.Enabled {
		s.scheduleTask(task)
	}
	s.logger.Info("task updated", "id", task.ID, "name", task.Name)
	return nil
}

// PauseTask disables a task without deleting it.
func (s *Scheduler) PauseTask(id string) error {
	return s.setEnabled(id, false)
}

// ResumeTask re-enables a paused task.
func (s *Scheduler) ResumeTask(id string) error {
	return s.setEnabled(id, true)
}

func (s *Scheduler) setEnabled(id string, enabled bool) error {
	task, err := s.store.GetTask(id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	task.Enabled = enabled
	return s.UpdateTask(task)
}

// DeleteTask removes a task.
func (s *Scheduler) DeleteTask(id string) error {
	s.cancelTimer(id)

	if err := s.store.DeleteTask(id); err != nil {
		return err
	}

	s.logger.Info("task deleted", "id", id)
	return nil
}

// GetTask retrieves a task by ID.
func (s *Scheduler) GetTask(id string) (*Task, error) {
	return s.store.GetTask(id)
}

// GetTaskByName retrieves a task by name, nil if none exists.
func (s *Scheduler) GetTaskByName(name string) (*Task, error) {
	return s.store.GetTaskByName(name)
}

// ListTasks returns all tasks.
func (s *Scheduler) ListTasks(enabledOnly bool) ([]*Task, error) {
	return s.store.ListTasks(enabledOnly)
}

// GetTaskExecutions returns execution history for a task.
func (s *Scheduler) GetTaskExecutions(taskID string, limit int) ([]*Execution, error) {
	return s.store.ListExecutions(taskID, limit)
}

// TriggerTask runs a task immediately, ignoring its schedule.
func (s *Scheduler) TriggerTask(ctx context.Context, taskID string) (*Execution, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	return s.executeTask(ctx, task, time.Now())
}

// scheduleTask arms (or re-arms) the timer for the task's next run.
func (s *Scheduler) scheduleTask(task *Task) {
	next, ok := task.NextRun(time.Now())
	if !ok {
		s.logger.Debug("task has no future runs", "id", task.ID, "name", task.Name)
		return
	}

	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, exists := s.timers[task.ID]; exists {
		timer.Stop()
	}
	s.timers[task.ID] = time.AfterFunc(delay, func() {
		s.onTaskFire(task.ID)
	})

	s.logger.Debug("task scheduled",
		"id", task.ID,
		"name", task.Name,
		"next", next,
		"delay", delay,
	)
}

// onTaskFire runs on the timer goroutine. It re-reads the task so edits
// made after arming still apply.
func (s *Scheduler) onTaskFire(taskID string) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	delete(s.timers, taskID)
	s.mu.Unlock()

	task, err := s.store.GetTask(taskID)
	if err != nil {
		s.logger.Error("failed to get task for execution", "id", taskID, "error", err)
		return
	}
	if !task.Enabled {
		return
	}

	s.bus.Emit(events.SourceScheduler, events.KindTaskFired, map[string]any{
		"task_id":   task.ID,
		"task_name": task.Name,
		"payload":   string(task.Payload.Kind),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.executeTask(ctx, task, time.Now()); err != nil {
		s.logger.Error("task execution failed", "id", taskID, "error", err)
	}

	// One-shots are spent; everything else re-arms.
	if task.Schedule.Kind != ScheduleAt {
		s.scheduleTask(task)
	}
}

// executeTask records the run, invokes the callback, and settles the
// execution row with the outcome.
func (s *Scheduler) executeTask(ctx context.Context, task *Task, scheduledAt time.Time) (*Execution, error) {
	exec := &Execution{
		ID:          NewID(),
		TaskID:      task.ID,
		ScheduledAt: scheduledAt,
		Status:      StatusRunning,
	}
	now := time.Now()
	exec.StartedAt = &now

	if err := s.store.CreateExecution(exec); err != nil {
		return nil, err
	}

	s.logger.Info("executing task",
		"task_id", task.ID,
		"task_name", task.Name,
		"execution_id", exec.ID,
	)

	var execErr error
	if s.execute != nil {
		execErr = s.execute(ctx, task, exec)
	}

	completed := time.Now()
	exec.CompletedAt = &completed

	if execErr != nil {
		exec.Status = StatusFailed
		exec.Result = execErr.Error()
	} else {
		exec.Status = StatusCompleted
		if exec.Result == "" {
			exec.Result = "success"
		}
	}

	if err := s.store.UpdateExecution(exec); err != nil {
		s.logger.Error("failed to update execution", "id", exec.ID, "error", err)
	}

	s.bus.Emit(events.SourceScheduler, events.KindTaskComplete, map[string]any{
		"task_id":      task.ID,
		"execution_id": exec.ID,
		"status":       string(exec.Status),
	})

	s.logger.Info("task execution completed",
		"task_id", task.ID,
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration", completed.Sub(*exec.StartedAt),
	)

	return exec, execErr
}

// cancelTimer stops and removes a task's timer.
func (s *Scheduler) cancelTimer(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[taskID]; exists {
		timer.Stop()
		delete(s.timers, taskID)
	}
}

// checkMissedExecutions settles executions left pending across a
// restart. Runs missed by less than a day are caught up under a fresh
// execution row; older ones are only marked skipped.
func (s *Scheduler) checkMissedExecutions(ctx context.Context) {
	pending, err := s.store.GetPendingExecutions()
	if err != nil {
		s.logger.Error("failed to get pending executions", "error", err)
		return
	}

	for _, exec := range pending {
		if time.Since(exec.ScheduledAt) > 24*time.Hour {
			exec.Status = StatusSkipped
			exec.Result = "missed execution window (>24h)"
			_ = s.store.UpdateExecution(exec)
			s.logger.Info("skipped stale execution", "id", exec.ID, "scheduled", exec.ScheduledAt)
			continue
		}

		task, err := s.store.GetTask(exec.TaskID)
		if err != nil {
			continue
		}
		s.logger.Info("catching up missed execution", "task", task.Name, "scheduled", exec.ScheduledAt)
		exec.Status = StatusSkipped
		exec.Result = "replaced by catch-up execution"
		_ = s.store.UpdateExecution(exec)
		_, _ = s.executeTask(ctx, task, exec.ScheduledAt)
	}
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, _ := s.store.ListTasks(false)
	enabled := 0
	for _, t := range tasks {
		if t.Enabled {
			enabled++
		}
	}

	return map[string]any{
		"running":       s.running,
		"total_tasks":   len(tasks),
		"enabled_tasks": enabled,
		"active_timers": len(s.timers),
	}
}
