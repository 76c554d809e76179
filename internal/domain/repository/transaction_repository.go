package repository

import (
	"context"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

type TransactionRepository interface {
	// Create returns ErrDuplicate when TransactionID is already recorded.
	Create(ctx context.Context, t *entity.Transaction) error
	ListByUser(ctx context.Context, userID string) ([]*entity.Transaction, error)
}
