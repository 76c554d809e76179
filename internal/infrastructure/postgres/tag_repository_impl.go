package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type TagRepository struct {
	pool *pgxpool.Pool
}

func NewTagRepository(pool *pgxpool.Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

func (r *TagRepository) Increment(ctx context.Context, name string) (*entity.Tag, error) {
	t := &entity.Tag{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tags (name, count) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET count = tags.count + 1, updated_at = now()
		RETURNING name, count, created_at
	`, name).Scan(&t.Name, &t.Count, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (r *TagRepository) Decrement(ctx context.Context, name string) (*entity.Tag, bool, error) {
	var (
		t       = &entity.Tag{}
		deleted bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT name, count, created_at FROM tags WHERE name = $1 FOR UPDATE
		`, name).Scan(&t.Name, &t.Count, &t.CreatedAt); err != nil {
			return err
		}
		t.Count--
		if t.Count <= 0 {
			deleted = true
			_, err := tx.Exec(ctx, `DELETE FROM tags WHERE name = $1`, name)
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE tags SET count = $2, updated_at = now() WHERE name = $1`, name, t.Count)
		return err
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	return t, deleted, nil
}

func (r *TagRepository) Get(ctx context.Context, name string) (*entity.Tag, error) {
	t := &entity.Tag{}
	err := r.pool.QueryRow(ctx, `SELECT name, count, created_at FROM tags WHERE name = $1`, name).
		Scan(&t.Name, &t.Count, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (r *TagRepository) List(ctx context.Context, limit int) ([]*entity.Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, count, created_at FROM tags
		ORDER BY count DESC, name COLLATE "C"
		LIMIT NULLIF($1, 0)
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Tag
	for rows.Next() {
		t := &entity.Tag{}
		if err := rows.Scan(&t.Name, &t.Count, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ repository.TagRepository = (*TagRepository)(nil)
