package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore is a task store over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore. The caller owns db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const sqliteTaskColumns = `id, name, description, category, importance, deadline, estimated_time, completed, created_at, updated_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL DEFAULT '',
			importance     INTEGER,
			deadline       TEXT,
			estimated_time INTEGER,
			completed      INTEGER NOT NULL DEFAULT 0,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed);`)
	return err
}

// Create inserts a new task. A caller-supplied ID is kept.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) (*Task, error) {
	prepareCreate(t, uuid.Must(uuid.NewV7()).String(), time.Now().Truncate(time.Microsecond))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+sqliteTaskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Notes, t.Category, t.Importance, nullIfEmpty(t.Deadline), t.EstimatedTime, t.Completed,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanSQLiteTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, sqliteNotFound(err))
	}
	return t, nil
}

// Update modifies task fields. Supported keys: name, notes, category,
// importance, deadline, estimatedTime, completed.
func (s *SQLiteStore) Update(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	cols, err := updateColumns(updates)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	setClauses := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now().Truncate(time.Microsecond))}
	for _, c := range cols {
		setClauses = append(setClauses, c.name+" = ?")
		args = append(args, c.value)
	}
	args = append(args, id)

	query := "UPDATE tasks SET " + strings.Join(setClauses, ", ") + " WHERE id = ? RETURNING " + sqliteTaskColumns
	t, err := scanSQLiteTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, sqliteNotFound(err))
	}
	return t, nil
}

// Complete marks a task as completed.
func (s *SQLiteStore) Complete(ctx context.Context, id string) (*Task, error) {
	return s.Update(ctx, id, map[string]any{"completed": true})
}

// Delete removes a task.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns all tasks in creation order.
func (s *SQLiteStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

// Count returns total task count.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// PendingCount returns count of tasks not yet completed.
func (s *SQLiteStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE completed = 0`).Scan(&n)
	return n, err
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row sqlRow) (*Task, error) {
	var (
		t                     Task
		importance, estimated sql.NullInt64
		deadline              sql.NullString
		createdAt, updatedAt  string
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Notes, &t.Category, &importance, &deadline, &estimated, &t.Completed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if importance.Valid {
		t.Importance = IntPtr(int(importance.Int64))
	}
	if estimated.Valid {
		t.EstimatedTime = IntPtr(int(estimated.Int64))
	}
	t.Deadline = deadline.String
	t.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedAt)
	return &t, nil
}

func sqliteNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// sqliteTimeLayout has fixed-width fractions so stored values sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
