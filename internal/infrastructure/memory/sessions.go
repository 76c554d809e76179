package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/oksasatya/go-social-sync/internal/application"
)

type expiring struct {
	value     string
	expiresAt time.Time
}

func (e expiring) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// Tokens is the in-process TokenStore used when Redis is not configured.
type Tokens struct {
	m *xsync.MapOf[string, expiring]
}

func NewTokens() *Tokens {
	return &Tokens{m: xsync.NewMapOf[string, expiring]()}
}

func (t *Tokens) Issue(_ context.Context, purpose, userID string, ttl time.Duration) (string, error) {
	tok := uuid.NewString()
	e := expiring{value: userID}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	t.m.Store(purpose+":"+tok, e)
	return tok, nil
}

func (t *Tokens) Consume(_ context.Context, purpose, token string) (string, error) {
	e, ok := t.m.LoadAndDelete(purpose + ":" + token)
	if !ok || !e.live(time.Now()) {
		return "", application.ErrTokenInvalid
	}
	return e.value, nil
}

type session struct {
	sid       string
	fields    map[string]any
	expiresAt time.Time
}

// Sessions is the in-process SessionStore used when Redis is not configured.
type Sessions struct {
	mu sync.Mutex
	m  map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*session)}
}

func (s *Sessions) Save(_ context.Context, userID, sid string, fields map[string]any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[userID]
	if !ok || !(expiring{expiresAt: cur.expiresAt}).live(time.Now()) {
		if sid == "" {
			return nil
		}
		cur = &session{fields: map[string]any{}}
		s.m[userID] = cur
	}
	if sid != "" {
		cur.sid = sid
	}
	for k, v := range fields {
		cur.fields[k] = v
	}
	if ttl > 0 {
		cur.expiresAt = time.Now().Add(ttl)
	}
	return nil
}

func (s *Sessions) SessionID(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[userID]
	if !ok || !(expiring{expiresAt: cur.expiresAt}).live(time.Now()) {
		return "", nil
	}
	return cur.sid, nil
}

func (s *Sessions) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.m, userID)
	s.mu.Unlock()
	return nil
}
