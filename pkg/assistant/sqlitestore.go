package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteMessageStore keeps chat history in a local SQLite database.
type SQLiteMessageStore struct {
	db *sql.DB
}

// NewSQLiteMessageStore creates a SQLiteMessageStore. The caller owns db.
func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// EnsureTable creates the chat_messages table if it doesn't exist.
func (s *SQLiteMessageStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			content    TEXT NOT NULL,
			sender     TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			session_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);`)
	return err
}

// Append stores m and fills in its ID. A zero Timestamp is set to now.
func (s *SQLiteMessageStore) Append(ctx context.Context, m *Message) (*Message, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().Truncate(time.Microsecond)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (content, sender, timestamp, session_id) VALUES (?, ?, ?, ?)`,
		m.Content, m.Sender, m.Timestamp.UTC().Format(sqliteTimeLayout), m.SessionID)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return m, nil
}

// History returns the last limit messages of a session, oldest first.
func (s *SQLiteMessageStore) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, sender, content, timestamp FROM chat_messages
		WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}
