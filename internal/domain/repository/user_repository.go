package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

var (
	// ErrNotFound is returned when the referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// ProfilePatch lists the profile keys to overwrite. Nil fields are left untouched.
type ProfilePatch struct {
	Name      *string
	Bio       *string
	Avatar    *string
	UpdatedAt *time.Time
}

// VerificationPatch sets or clears the verification state of a profile.
type VerificationPatch struct {
	IsVerified bool
	VerifiedAt *time.Time
	Method     string
	Details    *entity.VerificationDetails
}

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*entity.User, error)
	SetVerification(ctx context.Context, id string, patch VerificationPatch) (*entity.User, error)
	SetEmailVerified(ctx context.Context, id string) (*entity.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}
