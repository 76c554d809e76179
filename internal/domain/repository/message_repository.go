package repository

import (
	"context"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, m *entity.Message) error
	// ListForUser returns messages sent or received by userID, newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*entity.Message, error)
}
