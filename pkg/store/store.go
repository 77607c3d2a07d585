// Package store keeps per-conversation state across updates.
package store

import (
	"context"
	"strconv"
	"strings"
)

// Store persists string values scoped by chat id.
type Store interface {
	Get(ctx context.Context, chatID int64, key string) (string, bool, error)
	Set(ctx context.Context, chatID int64, key string, value string) error
	Delete(ctx context.Context, chatID int64, key string) error
	Clear(ctx context.Context, chatID int64) error
}

// Session is a Store view bound to one conversation.
type Session struct {
	store  Store
	chatID int64
}

// NewSession binds store to chatID.
func NewSession(store Store, chatID int64) *Session {
	return &Session{store: store, chatID: chatID}
}

// ChatID returns the conversation the session belongs to.
func (s *Session) ChatID() int64 {
	return s.chatID
}

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, s.chatID, key)
}

// GetString returns the value for key or fallback when absent.
func (s *Session) GetString(ctx context.Context, key string, fallback string) (string, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	return value, nil
}

func (s *Session) Set(ctx context.Context, key string, value string) error {
	return s.store.Set(ctx, s.chatID, key, value)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.chatID, key)
}

func (s *Session) Clear(ctx context.Context) error {
	return s.store.Clear(ctx, s.chatID)
}

// Increment adds one to an integer counter and returns the new value.
// Missing or non-numeric values count from zero.
func (s *Session) Increment(ctx context.Context, key string) (int64, error) {
	current, _, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}

	n, _ := strconv.ParseInt(strings.TrimSpace(current), 10, 64)
	n++
	if err := s.Set(ctx, key, strconv.FormatInt(n, 10)); err != nil {
		return 0, err
	}
	return n, nil
}

type sessionKey struct{}

// WithSession returns a context carrying session.
func WithSession(ctx context.Context, session *Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if session == nil {
		return ctx
	}

	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session attached before dispatch, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}

	session, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}
