package memory

import (
	"context"
	"sort"
	"time"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type TagRepository struct {
	s *Store
}

func (r *TagRepository) Increment(_ context.Context, name string) (*entity.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tags[name]
	if !ok {
		t = &entity.Tag{Name: name, CreatedAt: time.Now().UTC()}
		r.s.tags[name] = t
	}
	t.Count++
	return t.Clone(), nil
}

func (r *TagRepository) Decrement(_ context.Context, name string) (*entity.Tag, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tags[name]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	t.Count--
	if t.Count <= 0 {
		delete(r.s.tags, name)
		return t.Clone(), true, nil
	}
	return t.Clone(), false, nil
}

func (r *TagRepository) Get(_ context.Context, name string) (*entity.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tags[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *TagRepository) List(_ context.Context, limit int) ([]*entity.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Tag, 0, len(r.s.tags))
	for _, t := range r.s.tags {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return repository.TagMostUsedFirst(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ repository.TagRepository = (*TagRepository)(nil)
