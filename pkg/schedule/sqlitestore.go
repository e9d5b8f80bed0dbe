package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore keeps the schedule in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore. The caller owns db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Times keep their UTC offset so a stored plan reads back as it was laid out.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// EnsureTable creates the schedule_blocks table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schedule_blocks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			position   INTEGER NOT NULL,
			task_id    TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time   TEXT NOT NULL
		)`)
	return err
}

// Replace deletes the stored schedule and inserts blocks in one transaction.
// Any failure rolls back, leaving the previous schedule in place.
func (s *SQLiteStore) Replace(ctx context.Context, blocks []Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_blocks`); err != nil {
		return fmt.Errorf("%w: clear blocks: %v", ErrPersistence, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO schedule_blocks (position, task_id, start_time, end_time) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrPersistence, err)
	}
	defer stmt.Close()

	for i, b := range blocks {
		if _, err := stmt.ExecContext(ctx, i, b.TaskID, b.StartTime.Format(sqliteTimeLayout), b.EndTime.Format(sqliteTimeLayout)); err != nil {
			return fmt.Errorf("%w: insert block %d (task %q): %v", ErrPersistence, i, b.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return nil
}

// List returns the stored schedule in layout order.
func (s *SQLiteStore) List(ctx context.Context) ([]Block, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT task_id, start_time, end_time FROM schedule_blocks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	blocks := []Block{}
	for rows.Next() {
		var b Block
		var start, end string
		if err := rows.Scan(&b.TaskID, &start, &end); err != nil {
			return nil, err
		}
		if b.StartTime, err = time.Parse(sqliteTimeLayout, start); err != nil {
			return nil, fmt.Errorf("block %s start: %w", b.TaskID, err)
		}
		if b.EndTime, err = time.Parse(sqliteTimeLayout, end); err != nil {
			return nil, fmt.Errorf("block %s end: %w", b.TaskID, err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return blocks, nil
}

// Count returns the number of stored blocks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule_blocks`).Scan(&n)
	return n, err
}
