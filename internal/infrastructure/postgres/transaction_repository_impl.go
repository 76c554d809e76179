package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.CreatedAt = t.CreatedAt.Truncate(time.Microsecond)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO mpesa_transactions (id, user_id, transaction_id, phone_number, amount, status, type, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
	`, t.ID, t.UserID, t.TransactionID, t.PhoneNumber, t.Amount.String(), t.Status, t.Type, t.CreatedAt)
	return mapErr(err)
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Transaction, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, transaction_id, phone_number, amount::text, status, type, created_at
		FROM mpesa_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Transaction
	for rows.Next() {
		t := &entity.Transaction{}
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &t.TransactionID, &t.PhoneNumber, &amount, &t.Status, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)
