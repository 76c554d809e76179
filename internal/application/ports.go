package application

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
)

// ErrTokenInvalid is returned when a one-time token is unknown, expired or already used.
var ErrTokenInvalid = errors.New("invalid or expired token")

// Token purposes.
const (
	TokenVerifyEmail   = "email:verify:token"
	TokenResetPassword = "pwd:reset:token"
)

// TokenStore keeps one-time tokens that map back to a user id.
type TokenStore interface {
	Issue(ctx context.Context, purpose, userID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, purpose, token string) (string, error)
}

// SessionStore records the current session id per user; rotating it revokes older tokens.
// Save with an empty sid keeps the current one, and a zero ttl keeps the current expiry.
type SessionStore interface {
	Save(ctx context.Context, userID, sid string, fields map[string]any, ttl time.Duration) error
	SessionID(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// MailQueue hands email jobs to the out-of-process worker.
type MailQueue interface {
	Enqueue(ctx context.Context, job mailer.EmailJob) error
}

// UserIndex is the searchable user directory.
type UserIndex interface {
	IndexUser(ctx context.Context, u *entity.User) error
	SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error)
}

// ObjectStore uploads blobs and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}
