package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) Create(_ context.Context, m *entity.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.messages[m.ID] = m.Clone()
	return nil
}

func (r *MessageRepository) ListForUser(_ context.Context, userID string, limit int) ([]*entity.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Message
	for _, m := range r.s.messages {
		if m.Involves(userID) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return repository.MessageNewerFirst(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ repository.MessageRepository = (*MessageRepository)(nil)
