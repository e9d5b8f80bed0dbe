package assistant

import (
	"context"
	"time"
)

// Senders stored with each message.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// Message is one stored chat turn.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageStore persists chat history per session.
type MessageStore interface {
	Append(ctx context.Context, m *Message) (*Message, error)
	// History returns at most limit of the most recent messages of a
	// session, oldest first.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	EnsureTable(ctx context.Context) error
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
