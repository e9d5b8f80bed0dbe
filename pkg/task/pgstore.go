package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const pgTaskColumns = `id, name, description, category, importance, deadline, estimated_time, completed, created_at, updated_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			category       TEXT NOT NULL DEFAULT '',
			importance     INTEGER,
			deadline       TEXT,
			estimated_time INTEGER,
			completed      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ DEFAULT NOW(),
			updated_at     TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed)`)
	return err
}

// Create inserts a new task. A caller-supplied ID is kept.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	prepareCreate(t, uuid.Must(uuid.NewV7()).String(), time.Now().Truncate(time.Microsecond))

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+pgTaskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Name, t.Notes, t.Category, t.Importance, nullIfEmpty(t.Deadline), t.EstimatedTime, t.Completed, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, pgNotFound(err))
	}
	return t, nil
}

// Update modifies task fields. Supported keys: name, notes, category,
// importance, deadline, estimatedTime, completed.
func (s *PgStore) Update(ctx context.Context, id string, updates map[string]any) (*Task, error) {
	cols, err := updateColumns(updates)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}

	now := time.Now().Truncate(time.Microsecond)
	setClauses := "updated_at = $1"
	args := []any{now}
	argIdx := 2
	for _, c := range cols {
		setClauses += fmt.Sprintf(", %s = $%d", c.name, argIdx)
		args = append(args, c.value)
		argIdx++
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, pgTaskColumns)
	t, err := scanPgTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, pgNotFound(err))
	}
	return t, nil
}

// Complete marks a task as completed.
func (s *PgStore) Complete(ctx context.Context, id string) (*Task, error) {
	return s.Update(ctx, id, map[string]any{"completed": true})
}

// Delete removes a task.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// List returns all tasks in creation order.
func (s *PgStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgTaskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanPgTask(rows)
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
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

// PendingCount returns count of tasks not yet completed.
func (s *PgStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE NOT completed`).Scan(&n)
	return n, err
}

func scanPgTask(row pgx.Row) (*Task, error) {
	var t Task
	var deadline *string
	if err := row.Scan(&t.ID, &t.Name, &t.Notes, &t.Category, &t.Importance, &deadline, &t.EstimatedTime, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if deadline != nil {
		t.Deadline = *deadline
	}
	return &t, nil
}

func pgNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
