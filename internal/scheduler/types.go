// Package scheduler handles future task scheduling and execution,
// including the natural-language schedule parser the agent uses.
package scheduler

import (
	"time"
)

// Task pairs a schedule with the action to take when it fires.
type Task struct {
	ID        string    `json:"id"`   // UUIDv7
	Name      string    `json:"name"` // human-readable label
	Schedule  Schedule  `json:"schedule"`
	Payload   Payload   `json:"payload"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"` // session or user ID
	UpdatedAt time.Time `json:"updated_at"`
}

// Schedule says when a task runs. Exactly one of At, Every, or the
// Hour/Min pair is meaningful, selected by Kind.
type Schedule struct {
	Kind  ScheduleKind `json:"kind"`
	At    *time.Time   `json:"at,omitempty"`
	Every *Duration    `json:"every,omitempty"`
	Hour  int          `json:"hour,omitempty"`
	Min   int          `json:"min,omitempty"`
}

// ScheduleKind identifies the schedule type.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"    // One-shot at specific time
	ScheduleEvery ScheduleKind = "every" // Recurring interval
	ScheduleDaily ScheduleKind = "daily" // Every day at a fixed local time
)

// Duration wraps time.Duration for JSON serialization.
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Payload defines what action to take when a task fires.
type Payload struct {
	Kind PayloadKind    `json:"kind"`
	Data map[string]any `json:"data,omitempty"` // Kind-specific data
}

// PayloadKind identifies the payload type.
type PayloadKind string

const (
	PayloadSpeak    PayloadKind = "speak"    // Speak a message aloud
	PayloadCommand  PayloadKind = "command"  // Run a message through the agent loop
	PayloadReminder PayloadKind = "reminder" // Announce and record a reminder
)

// Execution represents a single run of a task.
type Execution struct {
	ID          string          `json:"id"`           // UUIDv7
	TaskID      string          `json:"task_id"`      // FK to Task
	ScheduledAt time.Time       `json:"scheduled_at"` // When it was supposed to run
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Result      string          `json:"result,omitempty"` // Output or error
}

// ExecutionStatus indicates the state of an execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped" // Missed window, chose not to catch up
)

// NextRun returns the first execution time after the given instant, or
// false when the task will never fire again.
func (t *Task) NextRun(after time.Time) (time.Time, bool) {
	switch t.Schedule.Kind {
	case ScheduleAt:
		if t.Schedule.At != nil && t.Schedule.At.After(after) {
			return *t.Schedule.At, true
		}
		return time.Time{}, false // one-shot already fired

	case ScheduleEvery:
		if t.Schedule.Every == nil || t.Schedule.Every.Duration <= 0 {
			return time.Time{}, false
		}
		// Intervals anchor on CreatedAt so the cadence survives
		// restarts instead of drifting to boot time.
		interval := t.Schedule.Every.Duration
		base := t.CreatedAt
		if base.IsZero() {
			base = after
		}
		elapsed := after.Sub(base)
		if elapsed < 0 {
			return base, true
		}
		intervals := int64(elapsed/interval) + 1
		return base.Add(time.Duration(intervals) * interval), true

	case ScheduleDaily:
		next := time.Date(after.Year(), after.Month(), after.Day(),
			t.Schedule.Hour, t.Schedule.Min, 0, 0, after.Location())
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true

	default:
		return time.Time{}, false
	}
}
