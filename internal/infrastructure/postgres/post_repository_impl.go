package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

const postColumns = `id, text, image_url, COALESCE(owner_id::text, ''), username, tags, likes, like_count, comments, comment_count, created_at`

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func scanPost(row pgx.Row) (*entity.Post, error) {
	p := &entity.Post{}
	err := row.Scan(&p.ID, &p.Text, &p.ImageURL, &p.OwnerID, &p.Username, &p.Tags, &p.Likes,
		&p.LikeCount, &p.Comments, &p.CommentCount, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *PostRepository) Create(ctx context.Context, p *entity.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	// timestamptz keeps microseconds; published and re-read documents must agree.
	p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []entity.Comment{}
	}
	p.LikeCount = len(p.Likes)
	p.CommentCount = len(p.Comments)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO posts (id, text, image_url, owner_id, username, tags, likes, like_count, comments, comment_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.Text, p.ImageURL, nullable(p.OwnerID), p.Username, p.Tags, p.Likes, p.LikeCount, p.Comments, p.CommentCount, p.CreatedAt)
	return mapErr(err)
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

func (r *PostRepository) UpdateText(ctx context.Context, id, text string) (*entity.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanPost(r.pool.QueryRow(ctx, `UPDATE posts SET text = $2 WHERE id = $1 RETURNING `+postColumns, id, text))
}

func (r *PostRepository) Delete(ctx context.Context, id string) (*entity.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanPost(r.pool.QueryRow(ctx, `DELETE FROM posts WHERE id = $1 RETURNING `+postColumns, id))
}

// toggleLike runs a conditional update; when the condition fails the current post is
// returned with applied=false.
func (r *PostRepository) toggleLike(ctx context.Context, id, query, userID string) (*entity.Post, bool, error) {
	if !validID(id) {
		return nil, false, repository.ErrNotFound
	}
	p, err := scanPost(r.pool.QueryRow(ctx, query, id, userID))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}
	p, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func (r *PostRepository) AddLike(ctx context.Context, id, userID string) (*entity.Post, bool, error) {
	return r.toggleLike(ctx, id, `
		UPDATE posts
		SET likes = array_append(likes, $2), like_count = like_count + 1
		WHERE id = $1 AND NOT ($2 = ANY (likes))
		RETURNING `+postColumns, userID)
}

func (r *PostRepository) RemoveLike(ctx context.Context, id, userID string) (*entity.Post, bool, error) {
	return r.toggleLike(ctx, id, `
		UPDATE posts
		SET likes = array_remove(likes, $2), like_count = like_count - 1
		WHERE id = $1 AND $2 = ANY (likes)
		RETURNING `+postColumns, userID)
}

func (r *PostRepository) AppendComment(ctx context.Context, id string, c entity.Comment) (*entity.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	c.CreatedAt = c.CreatedAt.Truncate(time.Microsecond)
	return scanPost(r.pool.QueryRow(ctx, `
		UPDATE posts
		SET comments = comments || jsonb_build_array($2::jsonb), comment_count = comment_count + 1
		WHERE id = $1
		RETURNING `+postColumns, id, c))
}

func (r *PostRepository) List(ctx context.Context, f repository.PostFilter) ([]*entity.Post, error) {
	// Predicates mirror repository.PostFilter.Matches.
	rows, err := r.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE ($1 = '' OR owner_id::text = $1)
		  AND ($2 = '' OR $2 = ANY (tags))
		  AND ($3 = ''
		       OR strpos(lower(text), lower($3)) > 0
		       OR strpos(lower(username), lower($3)) > 0
		       OR $4 = ANY (tags))
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($5, 0)
	`, f.OwnerID, f.Tag, f.Search, repository.SearchTag(f.Search), f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&n)
	return n, err
}

var _ repository.PostRepository = (*PostRepository)(nil)
