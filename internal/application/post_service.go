package application

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

// maxLikeAttempts bounds the retries of a like toggle that keeps losing races.
const maxLikeAttempts = 5

// LikeResult reports the caller's like state after a toggle.
type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

type PostService struct {
	Posts   repository.PostRepository
	Users   repository.UserRepository
	Counter *TagCounter
	Logger  *logrus.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, counter *TagCounter, logger *logrus.Logger) *PostService {
	return &PostService{Posts: posts, Users: users, Counter: counter, Logger: logger}
}

// displayName resolves the caller's current display name; a missing user falls back to
// the anonymous name rather than failing the write.
func displayName(ctx context.Context, users repository.UserRepository, id string) (string, error) {
	u, err := users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return entity.AnonymousName, nil
	}
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}

func (s *PostService) internal(err error, msg string, fields logrus.Fields) *Error {
	if s.Logger != nil {
		s.Logger.WithError(err).WithFields(fields).Error(msg)
	}
	return Internal("", err)
}

// Create stores a new post owned by caller and counts its hashtags.
func (s *PostService) Create(ctx context.Context, caller, text, imageURL string) (string, error) {
	if caller == "" {
		return "", NotAuthorized("You must be logged in to create a post")
	}
	name, err := displayName(ctx, s.Users, caller)
	if err != nil {
		return "", s.internal(err, "resolve author failed", logrus.Fields{"user_id": caller})
	}
	p := &entity.Post{
		Text:      text,
		ImageURL:  imageURL,
		CreatedAt: time.Now().UTC(),
		OwnerID:   caller,
		Username:  name,
		Tags:      ExtractHashtags(text),
		Likes:     []string{},
		Comments:  []entity.Comment{},
	}
	// Tags are counted before the post exists so a remove can never release them first.
	if err := s.Counter.Apply(ctx, p.Tags, TagIncrement); err != nil {
		return "", s.internal(err, "tag increment failed", logrus.Fields{"user_id": caller})
	}
	if err := s.Posts.Create(ctx, p); err != nil {
		if rerr := s.Counter.Apply(ctx, p.Tags, TagDecrement); rerr != nil && s.Logger != nil {
			s.Logger.WithError(rerr).WithField("user_id", caller).Error("tag rollback failed")
		}
		return "", s.internal(err, "create post failed", logrus.Fields{"user_id": caller})
	}
	return p.ID, nil
}

// owned loads postID and checks caller owns it. A missing post is reported as
// not authorized so callers cannot probe for ids.
func (s *PostService) owned(ctx context.Context, caller, postID, action string) (*entity.Post, error) {
	reason := "You can only " + action + " your own posts"
	if caller == "" {
		return nil, NotAuthorized(reason)
	}
	p, err := s.Posts.GetByID(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotAuthorized(reason)
	}
	if err != nil {
		return nil, s.internal(err, "load post failed", logrus.Fields{"post_id": postID})
	}
	if p.OwnerID == "" || p.OwnerID != caller {
		return nil, NotAuthorized(reason)
	}
	return p, nil
}

// Remove deletes caller's post and releases its tags.
func (s *PostService) Remove(ctx context.Context, caller, postID string) error {
	if _, err := s.owned(ctx, caller, postID, "remove"); err != nil {
		return err
	}
	// Only the remove that actually deleted the row releases its tags.
	p, err := s.Posts.Delete(ctx, postID)
	if errors.Is(err, repository.ErrNotFound) {
		return NotAuthorized("You can only remove your own posts")
	}
	if err != nil {
		return s.internal(err, "delete post failed", logrus.Fields{"post_id": postID})
	}
	if err := s.Counter.Apply(ctx, p.Tags, TagDecrement); err != nil {
		return s.internal(err, "tag decrement failed", logrus.Fields{"post_id": postID})
	}
	return nil
}

// Edit replaces the text of caller's post. Tags keep the values extracted at creation.
func (s *PostService) Edit(ctx context.Context, caller, postID, newText string) error {
	if _, err := s.owned(ctx, caller, postID, "edit"); err != nil {
		return err
	}
	if _, err := s.Posts.UpdateText(ctx, postID, newText); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFound("Post not found")
		}
		return s.internal(err, "edit post failed", logrus.Fields{"post_id": postID})
	}
	return nil
}

// ToggleLike flips caller's like on postID.
func (s *PostService) ToggleLike(ctx context.Context, caller, postID string) (LikeResult, error) {
	if caller == "" {
		return LikeResult{}, NotAuthorized("You must be logged in to like a post")
	}
	for attempt := 0; attempt < maxLikeAttempts; attempt++ {
		p, err := s.Posts.GetByID(ctx, postID)
		if errors.Is(err, repository.ErrNotFound) {
			return LikeResult{}, NotFound("Post not found")
		}
		if err != nil {
			return LikeResult{}, s.internal(err, "load post failed", logrus.Fields{"post_id": postID})
		}

		liked := !p.LikedBy(caller)
		var applied bool
		if liked {
			p, applied, err = s.Posts.AddLike(ctx, postID, caller)
		} else {
			p, applied, err = s.Posts.RemoveLike(ctx, postID, caller)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return LikeResult{}, NotFound("Post not found")
		}
		if err != nil {
			return LikeResult{}, s.internal(err, "toggle like failed", logrus.Fields{"post_id": postID})
		}
		if applied {
			return LikeResult{Liked: liked, LikeCount: p.LikeCount}, nil
		}
		// Another toggle by the same user landed first; decide again from fresh state.
	}
	return LikeResult{}, s.internal(errors.New("like toggle kept conflicting"), "toggle like failed", logrus.Fields{"post_id": postID})
}

// Comment appends a comment by caller and returns its id.
func (s *PostService) Comment(ctx context.Context, caller, postID, text string) (string, error) {
	if caller == "" {
		return "", NotAuthorized("You must be logged in to comment")
	}
	if _, err := s.Posts.GetByID(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", NotFound("Post not found")
		}
		return "", s.internal(err, "load post failed", logrus.Fields{"post_id": postID})
	}
	name, err := displayName(ctx, s.Users, caller)
	if err != nil {
		return "", s.internal(err, "resolve author failed", logrus.Fields{"user_id": caller})
	}
	c := entity.Comment{
		ID:        ulid.Make().String(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
		OwnerID:   caller,
		Username:  name,
	}
	if _, err := s.Posts.AppendComment(ctx, postID, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", NotFound("Post not found")
		}
		return "", s.internal(err, "append comment failed", logrus.Fields{"post_id": postID})
	}
	return c.ID, nil
}
