// Package assistant implements the praxus chat assistant: stored
// per-session history in front of a pluggable language model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"praxus/pkg/logx"
)

// SystemPrompt opens every new session.
const SystemPrompt = "You are Praxus, a helpful AI assistant for productivity and task management. Be concise, helpful, and friendly."

// DefaultSession is used when a request names no session.
const DefaultSession = "default"

const noKeyReply = "Error: Mistral API key not configured. Please set the MISTRAL_API_KEY environment variable."

// Reply is the answer to one chat message.
type Reply struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Assistant answers chat messages.
type Assistant struct {
	store        MessageStore
	provider     Provider
	limiter      *rate.Limiter
	log          logx.Logger
	historyLimit int
	timeout      time.Duration
	now          func() time.Time
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithHistoryLimit caps the number of past messages sent as context.
func WithHistoryLimit(n int) Option { return func(a *Assistant) { a.historyLimit = n } }

// WithRate limits outbound provider calls to perSec per second. Zero or
// negative disables the limit.
func WithRate(perSec int) Option {
	return func(a *Assistant) {
		if perSec <= 0 {
			a.limiter = nil
			return
		}
		a.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option { return func(a *Assistant) { a.timeout = d } }

func WithClock(now func() time.Time) Option { return func(a *Assistant) { a.now = now } }

// New creates an Assistant.
func New(store MessageStore, provider Provider, log logx.Logger, opts ...Option) *Assistant {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Assistant{
		store:        store,
		provider:     provider,
		limiter:      rate.NewLimiter(rate.Limit(1), 1),
		log:          log.With(logx.String("component", "assistant")),
		historyLimit: 10,
		timeout:      60 * time.Second,
		now:          time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Reply stores message, asks the provider for an answer with the session's
// recent history as context, and stores the answer.
//
// Provider failures do not fail the call: the answer becomes an apology and
// is stored like any other. Only store errors are returned.
func (a *Assistant) Reply(ctx context.Context, sessionID, message string) (*Reply, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = DefaultSession
	}

	history, err := a.store.History(ctx, sessionID, a.historyLimit)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.Append(ctx, &Message{
		SessionID: sessionID,
		Sender:    SenderUser,
		Content:   message,
		Timestamp: a.now(),
	}); err != nil {
		return nil, err
	}

	text := a.complete(ctx, conversation(history, message))

	answer, err := a.store.Append(ctx, &Message{
		SessionID: sessionID,
		Sender:    SenderAI,
		Content:   text,
		Timestamp: a.now(),
	})
	if err != nil {
		return nil, err
	}
	return &Reply{Text: answer.Content, Timestamp: answer.Timestamp}, nil
}

// History returns the stored messages of a session, oldest first.
func (a *Assistant) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = DefaultSession
	}
	return a.store.History(ctx, sessionID, limit)
}

func (a *Assistant) complete(ctx context.Context, msgs []ChatMessage) string {
	if a.provider == nil {
		return noKeyReply
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			a.log.Warn("provider call not attempted", logx.Err(err))
			return apology(err)
		}
	}

	text, err := a.provider.Complete(ctx, msgs)
	if errors.Is(err, ErrNoAPIKey) {
		a.log.Warn("assistant has no api key")
		return noKeyReply
	}
	if err != nil {
		a.log.Error("provider call failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return apology(err)
	}
	a.log.Debug("provider answered",
		logx.Int("messages", len(msgs)),
		logx.Duration("took", time.Since(start)),
	)
	return text
}

func conversation(history []Message, message string) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(history)+2)
	if len(history) == 0 {
		msgs = append(msgs, ChatMessage{Role: RoleSystem, Content: SystemPrompt})
	}
	for _, m := range history {
		role := RoleAssistant
		if m.Sender == SenderUser {
			role = RoleUser
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: m.Content})
	}
	return append(msgs, ChatMessage{Role: RoleUser, Content: message})
}

func apology(err error) string {
	return fmt.Sprintf("I'm sorry, I encountered an error while processing your request: %v", err)
}
