package changefeed

import (
	"context"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/internal/livequery"
)

type userRepo struct {
	repository.UserRepository
	feed  *livequery.Feed
	locks *keyLocks
}

func (r *userRepo) Create(ctx context.Context, u *entity.User) error {
	if err := r.UserRepository.Create(ctx, u); err != nil {
		return err
	}
	emit(ctx, r.feed, CollectionUsers, livequery.OpInsert, u.ID, u.Clone(), nil)
	return nil
}

func (r *userRepo) updated(ctx context.Context, u *entity.User, err error) (*entity.User, error) {
	if err != nil {
		return nil, err
	}
	emit(ctx, r.feed, CollectionUsers, livequery.OpUpdate, u.ID, u.Clone(), nil)
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id string, patch repository.ProfilePatch) (*entity.User, error) {
	defer r.locks.lock(CollectionUsers, id)()
	u, err := r.UserRepository.UpdateProfile(ctx, id, patch)
	return r.updated(ctx, u, err)
}

func (r *userRepo) SetVerification(ctx context.Context, id string, patch repository.VerificationPatch) (*entity.User, error) {
	defer r.locks.lock(CollectionUsers, id)()
	u, err := r.UserRepository.SetVerification(ctx, id, patch)
	return r.updated(ctx, u, err)
}

func (r *userRepo) SetEmailVerified(ctx context.Context, id string) (*entity.User, error) {
	defer r.locks.lock(CollectionUsers, id)()
	u, err := r.UserRepository.SetEmailVerified(ctx, id)
	return r.updated(ctx, u, err)
}

type postRepo struct {
	repository.PostRepository
	feed  *livequery.Feed
	locks *keyLocks
}

func (r *postRepo) Create(ctx context.Context, p *entity.Post) error {
	if err := r.PostRepository.Create(ctx, p); err != nil {
		return err
	}
	emit(ctx, r.feed, CollectionPosts, livequery.OpInsert, p.ID, p.Clone(), nil)
	return nil
}

func (r *postRepo) UpdateText(ctx context.Context, id, text string) (*entity.Post, error) {
	defer r.locks.lock(CollectionPosts, id)()
	p, err := r.PostRepository.UpdateText(ctx, id, text)
	if err != nil {
		return nil, err
	}
	emit(ctx, r.feed, CollectionPosts, livequery.OpUpdate, p.ID, p.Clone(), nil)
	return p, nil
}

func (r *postRepo) Delete(ctx context.Context, id string) (*entity.Post, error) {
	defer r.locks.lock(CollectionPosts, id)()
	p, err := r.PostRepository.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	emit(ctx, r.feed, CollectionPosts, livequery.OpDelete, id, nil, p.Clone())
	return p, nil
}

func (r *postRepo) AddLike(ctx context.Context, id, userID string) (*entity.Post, bool, error) {
	defer r.locks.lock(CollectionPosts, id)()
	p, applied, err := r.PostRepository.AddLike(ctx, id, userID)
	if err == nil && applied {
		emit(ctx, r.feed, CollectionPosts, livequery.OpUpdate, p.ID, p.Clone(), nil)
	}
	return p, applied, err
}

func (r *postRepo) RemoveLike(ctx context.Context, id, userID string) (*entity.Post, bool, error) {
	defer r.locks.lock(CollectionPosts, id)()
	p, applied, err := r.PostRepository.RemoveLike(ctx, id, userID)
	if err == nil && applied {
		emit(ctx, r.feed, CollectionPosts, livequery.OpUpdate, p.ID, p.Clone(), nil)
	}
	return p, applied, err
}

func (r *postRepo) AppendComment(ctx context.Context, id string, c entity.Comment) (*entity.Post, error) {
	defer r.locks.lock(CollectionPosts, id)()
	p, err := r.PostRepository.AppendComment(ctx, id, c)
	if err != nil {
		return nil, err
	}
	emit(ctx, r.feed, CollectionPosts, livequery.OpUpdate, p.ID, p.Clone(), nil)
	return p, nil
}

type tagRepo struct {
	repository.TagRepository
	feed  *livequery.Feed
	locks *keyLocks
}

func (r *tagRepo) Increment(ctx context.Context, name string) (*entity.Tag, error) {
	defer r.locks.lock(CollectionTags, name)()
	t, err := r.TagRepository.Increment(ctx, name)
	if err != nil {
		return nil, err
	}
	op := livequery.OpUpdate
	if t.Count == 1 {
		op = livequery.OpInsert
	}
	emit(ctx, r.feed, CollectionTags, op, t.Name, t.Clone(), nil)
	return t, nil
}

func (r *tagRepo) Decrement(ctx context.Context, name string) (*entity.Tag, bool, error) {
	defer r.locks.lock(CollectionTags, name)()
	t, deleted, err := r.TagRepository.Decrement(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if deleted {
		emit(ctx, r.feed, CollectionTags, livequery.OpDelete, name, nil, t.Clone())
	} else {
		emit(ctx, r.feed, CollectionTags, livequery.OpUpdate, t.Name, t.Clone(), nil)
	}
	return t, deleted, nil
}

type messageRepo struct {
	repository.MessageRepository
	feed  *livequery.Feed
	locks *keyLocks
}

func (r *messageRepo) Create(ctx context.Context, m *entity.Message) error {
	if err := r.MessageRepository.Create(ctx, m); err != nil {
		return err
	}
	emit(ctx, r.feed, CollectionMessages, livequery.OpInsert, m.ID, m.Clone(), nil)
	return nil
}

type transactionRepo struct {
	repository.TransactionRepository
	feed  *livequery.Feed
	locks *keyLocks
}

func (r *transactionRepo) Create(ctx context.Context, t *entity.Transaction) error {
	if err := r.TransactionRepository.Create(ctx, t); err != nil {
		return err
	}
	emit(ctx, r.feed, CollectionTransactions, livequery.OpInsert, t.ID, t.Clone(), nil)
	return nil
}
