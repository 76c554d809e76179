package repository

import (
	"context"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

type TagRepository interface {
	// Increment adds one to the tag's count, creating it with count 1 when absent.
	Increment(ctx context.Context, name string) (*entity.Tag, error)
	// Decrement subtracts one and deletes the tag when the count drops to zero or below.
	// It returns ErrNotFound when the tag does not exist.
	Decrement(ctx context.Context, name string) (t *entity.Tag, deleted bool, err error)
	Get(ctx context.Context, name string) (*entity.Tag, error)
	// List returns tags sorted by count descending, then name.
	List(ctx context.Context, limit int) ([]*entity.Tag, error)
}
