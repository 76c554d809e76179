package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Create(_ context.Context, t *entity.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.transactions {
		if other.TransactionID == t.TransactionID {
			return repository.ErrDuplicate
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r.s.transactions[t.ID] = t.Clone()
	return nil
}

func (r *TransactionRepository) ListByUser(_ context.Context, userID string) ([]*entity.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Transaction
	for _, t := range r.s.transactions {
		if t.UserID == userID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return repository.TransactionNewerFirst(out[i], out[j]) })
	return out, nil
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)
