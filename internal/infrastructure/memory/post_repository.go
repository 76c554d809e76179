package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type PostRepository struct {
	s *Store
}

func (r *PostRepository) Create(_ context.Context, p *entity.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.LikeCount = len(p.Likes)
	p.CommentCount = len(p.Comments)
	r.s.posts[p.ID] = p.Clone()
	return nil
}

func (r *PostRepository) GetByID(_ context.Context, id string) (*entity.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *PostRepository) UpdateText(_ context.Context, id, text string) (*entity.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Text = text
	return p.Clone(), nil
}

func (r *PostRepository) Delete(_ context.Context, id string) (*entity.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.s.posts, id)
	return p, nil
}

func (r *PostRepository) AddLike(_ context.Context, id, userID string) (*entity.Post, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if p.LikedBy(userID) {
		return p.Clone(), false, nil
	}
	p.Likes = append(p.Likes, userID)
	p.LikeCount++
	return p.Clone(), true, nil
}

func (r *PostRepository) RemoveLike(_ context.Context, id, userID string) (*entity.Post, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if !p.LikedBy(userID) {
		return p.Clone(), false, nil
	}
	likes := p.Likes[:0]
	for _, l := range p.Likes {
		if l != userID {
			likes = append(likes, l)
		}
	}
	p.Likes = likes
	p.LikeCount--
	return p.Clone(), true, nil
}

func (r *PostRepository) AppendComment(_ context.Context, id string, c entity.Comment) (*entity.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Comments = append(p.Comments, c)
	p.CommentCount++
	return p.Clone(), nil
}

func (r *PostRepository) List(_ context.Context, f repository.PostFilter) ([]*entity.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Post
	for _, p := range r.s.posts {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return repository.PostNewerFirst(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *PostRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.posts), nil
}

var _ repository.PostRepository = (*PostRepository)(nil)
