package assistant

import (
	"context"
	"errors"
)

// Roles used in provider conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn sent to a language model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider completes a conversation with a single answer.
type Provider interface {
	Complete(ctx context.Context, msgs []ChatMessage) (string, error)
}

// ErrNoAPIKey is returned by providers that need a key and have none.
var ErrNoAPIKey = errors.New("api key not configured")
