package repository

import (
	"context"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

// PostFilter selects posts. At most one of OwnerID, Tag or Search is expected to be set;
// an empty filter selects every post.
type PostFilter struct {
	OwnerID string
	Tag     string
	Search  string
	Limit   int
}

// PostRepository stores posts. Like and comment mutations are single atomic updates
// and return the post as it is after the write.
type PostRepository interface {
	Create(ctx context.Context, p *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	UpdateText(ctx context.Context, id, text string) (*entity.Post, error)
	Delete(ctx context.Context, id string) (*entity.Post, error)
	// AddLike adds userID to likes and increments likeCount when userID is absent.
	// applied is false when the post already carried the like.
	AddLike(ctx context.Context, id, userID string) (p *entity.Post, applied bool, err error)
	// RemoveLike is the inverse of AddLike.
	RemoveLike(ctx context.Context, id, userID string) (p *entity.Post, applied bool, err error)
	AppendComment(ctx context.Context, id string, c entity.Comment) (*entity.Post, error)
	// List returns matching posts sorted by createdAt descending.
	List(ctx context.Context, f PostFilter) ([]*entity.Post, error)
	Count(ctx context.Context) (int, error)
}
