package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

const userColumns = `id, COALESCE(username, ''), emails, password_hash, profile, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Emails, &u.Password, &u.Profile, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Emails == nil {
		u.Emails = []entity.Email{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, emails, password_hash, profile)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, nullable(u.Username), u.Emails, u.Password, u.Profile)
	return mapErr(row.Scan(&u.CreatedAt, &u.UpdatedAt))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(emails) e
			WHERE lower(e ->> 'address') = lower($1)
		)
		LIMIT 1
	`, email))
}

func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

// mergeProfile overwrites the given profile keys in one statement.
func (r *UserRepository) mergeProfile(ctx context.Context, id string, patch map[string]any) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET profile = profile || $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, string(b)))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch repository.ProfilePatch) (*entity.User, error) {
	set := map[string]any{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Bio != nil {
		set["bio"] = *patch.Bio
	}
	if patch.Avatar != nil {
		set["avatar"] = *patch.Avatar
	}
	if patch.UpdatedAt != nil {
		set["updatedAt"] = patch.UpdatedAt.UTC()
	}
	return r.mergeProfile(ctx, id, set)
}

func (r *UserRepository) SetVerification(ctx context.Context, id string, patch repository.VerificationPatch) (*entity.User, error) {
	set := map[string]any{
		"isVerified": patch.IsVerified,
		"verifiedAt": nil,
	}
	if patch.VerifiedAt != nil {
		set["verifiedAt"] = patch.VerifiedAt.UTC()
	}
	if patch.Method != "" {
		set["verificationMethod"] = patch.Method
	}
	if patch.Details != nil {
		set["verificationDetails"] = patch.Details
	}
	return r.mergeProfile(ctx, id, set)
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id string) (*entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET emails = CASE WHEN jsonb_array_length(emails) > 0
		                  THEN jsonb_set(emails, '{0,verified}', 'true'::jsonb)
		                  ELSE emails END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, time.Now(), id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
