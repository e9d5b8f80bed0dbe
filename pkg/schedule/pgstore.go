package schedule

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed schedule store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the schedule_blocks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schedule_blocks (
			id         BIGSERIAL PRIMARY KEY,
			position   INTEGER NOT NULL,
			task_id    TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time   TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Replace deletes the stored schedule and inserts blocks in one transaction.
// The table lock keeps concurrent replacements from interleaving.
func (s *PgStore) Replace(ctx context.Context, blocks []Block) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrPersistence, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE schedule_blocks IN EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("%w: lock blocks: %v", ErrPersistence, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM schedule_blocks`); err != nil {
		return fmt.Errorf("%w: clear blocks: %v", ErrPersistence, err)
	}

	if len(blocks) > 0 {
		batch := &pgx.Batch{}
		for i, b := range blocks {
			batch.Queue(`INSERT INTO schedule_blocks (position, task_id, start_time, end_time) VALUES ($1, $2, $3, $4)`,
				i, b.TaskID, b.StartTime, b.EndTime)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: insert blocks: %v", ErrPersistence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrPersistence, err)
	}
	return nil
}

// List returns the stored schedule in layout order.
func (s *PgStore) List(ctx context.Context) ([]Block, error) {
	rows, err := s.pool.Query(ctx, `SELECT task_id, start_time, end_time FROM schedule_blocks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	blocks := []Block{}
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.TaskID, &b.StartTime, &b.EndTime); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return blocks, nil
}

// Count returns the number of stored blocks.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schedule_blocks`).Scan(&n)
	return n, err
}
