package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgMessageStore keeps chat history in PostgreSQL.
type PgMessageStore struct {
	pool *pgxpool.Pool
}

// NewPgMessageStore creates a new PostgreSQL-backed message store.
func NewPgMessageStore(pool *pgxpool.Pool) *PgMessageStore {
	return &PgMessageStore{pool: pool}
}

// EnsureTable creates the chat_messages table if it doesn't exist.
func (s *PgMessageStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         BIGSERIAL PRIMARY KEY,
			content    TEXT NOT NULL,
			sender     TEXT NOT NULL,
			timestamp  TIMESTAMPTZ NOT NULL DEFAULT now(),
			session_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);
	`)
	return err
}

// Append stores m and fills in its ID.
func (s *PgMessageStore) Append(ctx context.Context, m *Message) (*Message, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().Truncate(time.Microsecond)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (content, sender, timestamp, session_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		m.Content, m.Sender, m.Timestamp, m.SessionID,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

// History returns the last limit messages of a session, oldest first.
func (s *PgMessageStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, sender, content, timestamp FROM chat_messages
		WHERE session_id = $1 ORDER BY id DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}
