package scheduler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists tasks and their execution history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the scheduler database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	// foreign_keys and busy_timeout are set per-connection via the DSN
	// in NewStore; pooled connections would not see them if they were
	// PRAGMA statements run here.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			schedule_json TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			created_by TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			scheduled_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			status TEXT NOT NULL,
			result TEXT,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_scheduled_at ON executions(scheduled_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// NewID generates a UUIDv7, falling back to v4 when the clock source
// misbehaves.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

const taskColumns = `id, name, schedule_json, payload_json, enabled, created_at, created_by, updated_at`
const execColumns = `id, task_id, scheduled_at, started_at, completed_at, status, result`

// CreateTask persists a new task, assigning an ID and timestamps when
// missing.
func (s *Store) CreateTask(t *Task) error {
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()

	scheduleJSON, payloadJSON, err := marshalTask(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, scheduleJSON, payloadJSON, boolToInt(t.Enabled),
		t.CreatedAt.Format(time.RFC3339Nano), t.CreatedBy, t.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(id string) (*Task, error) {
	return scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

// GetTaskByName looks a task up by its label. Missing names return
// (nil, nil); duplicated names are an error since the caller cannot
// tell which one was meant.
func (s *Store) GetTaskByName(name string) (*Task, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE name = ?`, name).Scan(&count); err != nil {
		return nil, err
	}
	switch {
	case count == 0:
		return nil, nil
	case count > 1:
		return nil, fmt.Errorf("multiple tasks found with name %q", name)
	}

	t, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTasks returns all tasks, newest first, optionally only enabled
// ones.
func (s *Store) ListTasks(enabledOnly bool) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask rewrites a task's mutable fields.
func (s *Store) UpdateTask(t *Task) error {
	t.UpdatedAt = time.Now()
	scheduleJSON, payloadJSON, err := marshalTask(t)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		UPDATE tasks SET name = ?, schedule_json = ?, payload_json = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, t.Name, scheduleJSON, payloadJSON, boolToInt(t.Enabled),
		t.UpdatedAt.Format(time.RFC3339Nano), t.ID)
	return err
}

// DeleteTask removes a task; its executions cascade.
func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// CreateExecution records a new execution.
func (s *Store) CreateExecution(e *Execution) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	_, err := s.db.Exec(`
		INSERT INTO executions (`+execColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.ScheduledAt.Format(time.RFC3339Nano),
		timePtr(e.StartedAt), timePtr(e.CompletedAt), e.Status, e.Result)
	return err
}

// UpdateExecution updates an execution record.
func (s *Store) UpdateExecution(e *Execution) error {
	_, err := s.db.Exec(`
		UPDATE executions SET started_at = ?, completed_at = ?, status = ?, result = ?
		WHERE id = ?
	`, timePtr(e.StartedAt), timePtr(e.CompletedAt), e.Status, e.Result, e.ID)
	return err
}

// ListExecutions returns a task's executions, most recent first.
func (s *Store) ListExecutions(taskID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryExecutions(`
		SELECT `+execColumns+` FROM executions WHERE task_id = ?
		ORDER BY scheduled_at DESC LIMIT ?
	`, taskID, limit)
}

// GetPendingExecutions returns executions still waiting to run, oldest
// first.
func (s *Store) GetPendingExecutions() ([]*Execution, error) {
	return s.queryExecutions(`
		SELECT `+execColumns+` FROM executions WHERE status = ?
		ORDER BY scheduled_at ASC
	`, StatusPending)
}

func (s *Store) queryExecutions(query string, args ...any) ([]*Execution, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func marshalTask(t *Task) (string, string, error) {
	scheduleJSON, err := json.Marshal(t.Schedule)
	if err != nil {
		return "", "", fmt.Errorf("marshal schedule: %w", err)
	}
	payloadJSON, err := json.Marshal(t.Payload)
	if err != nil {
		return "", "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(scheduleJSON), string(payloadJSON), nil
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var scheduleJSON, payloadJSON string
	var enabled int
	var createdAt, updatedAt string

	if err := row.Scan(&t.ID, &t.Name, &scheduleJSON, &payloadJSON, &enabled, &createdAt, &t.CreatedBy, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &t.Schedule); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &t.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	t.Enabled = enabled == 1
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}

func scanExecution(row rowScanner) (*Execution, error) {
	var e Execution
	var scheduledAt string
	var startedAt, completedAt, result sql.NullString

	if err := row.Scan(&e.ID, &e.TaskID, &scheduledAt, &startedAt, &completedAt, &e.Status, &result); err != nil {
		return nil, err
	}
	e.ScheduledAt, _ = time.Parse(time.RFC3339Nano, scheduledAt)
	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, startedAt.String)
		e.StartedAt = &t
	}
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		e.CompletedAt = &t
	}
	e.Result = result.String
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
