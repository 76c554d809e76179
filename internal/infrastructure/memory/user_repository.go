package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if u.Username != "" && strings.EqualFold(other.Username, u.Username) {
			return repository.ErrDuplicate
		}
		if e, o := u.PrimaryEmail(), other.PrimaryEmail(); e != nil && o != nil && strings.EqualFold(e.Address, o.Address) {
			return repository.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.s.users[u.ID] = u.Clone()
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		for _, e := range u.Emails {
			if strings.EqualFold(e.Address, email) {
				return u.Clone(), nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) List(_ context.Context) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

func (r *UserRepository) update(id string, fn func(u *entity.User)) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return u.Clone(), nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id string, patch repository.ProfilePatch) (*entity.User, error) {
	return r.update(id, func(u *entity.User) {
		if patch.Name != nil {
			u.Profile.Name = *patch.Name
		}
		if patch.Bio != nil {
			u.Profile.Bio = *patch.Bio
		}
		if patch.Avatar != nil {
			u.Profile.Avatar = *patch.Avatar
		}
		if patch.UpdatedAt != nil {
			t := *patch.UpdatedAt
			u.Profile.UpdatedAt = &t
		}
	})
}

func (r *UserRepository) SetVerification(_ context.Context, id string, patch repository.VerificationPatch) (*entity.User, error) {
	return r.update(id, func(u *entity.User) {
		u.Profile.IsVerified = patch.IsVerified
		u.Profile.VerifiedAt = nil
		if patch.VerifiedAt != nil {
			t := *patch.VerifiedAt
			u.Profile.VerifiedAt = &t
		}
		if patch.Method != "" {
			u.Profile.VerificationMethod = patch.Method
		}
		if patch.Details != nil {
			d := *patch.Details
			u.Profile.VerificationDetails = &d
		}
	})
}

func (r *UserRepository) SetEmailVerified(_ context.Context, id string) (*entity.User, error) {
	return r.update(id, func(u *entity.User) {
		if len(u.Emails) > 0 {
			u.Emails[0].Verified = true
		}
	})
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, hash string) error {
	_, err := r.update(id, func(u *entity.User) { u.Password = hash })
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
