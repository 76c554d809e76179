package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *entity.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.CreatedAt = m.CreatedAt.Truncate(time.Microsecond)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, text, sender_id, sender_name, receiver_id, receiver_name, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.Text, m.SenderID, m.SenderName, m.ReceiverID, m.ReceiverName, m.Read, m.CreatedAt)
	return mapErr(err)
}

func (r *MessageRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*entity.Message, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, text, sender_id, sender_name, receiver_id, receiver_name, read, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Message
	for rows.Next() {
		m := &entity.Message{}
		if err := rows.Scan(&m.ID, &m.Text, &m.SenderID, &m.SenderName, &m.ReceiverID, &m.ReceiverName, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ repository.MessageRepository = (*MessageRepository)(nil)
