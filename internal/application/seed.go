package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
)

// SeedAuthor is the display name on the sample posts. They have no owner, so no
// caller can edit or remove them.
const SeedAuthor = "admin"

var samplePosts = []struct {
	text string
	age  time.Duration
}{
	{"Welcome to our social platform!", 0},
	{"This is a sample post. Create an account to add yours!", time.Hour},
	{"Check out the new features we just added!", 2 * time.Hour},
}

type Seeder struct {
	Users  repository.UserRepository
	Posts  repository.PostRepository
	Logger *logrus.Logger
}

// Seed creates the default admin account when there are no users and the sample posts
// when there are no posts. Running it again is a no-op.
func (s *Seeder) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	n, err := s.Users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n == 0 && adminEmail != "" {
		hash, err := helpers.HashPassword(adminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		u := NewUser(adminEmail, hash, "", "")
		if err := s.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "email": adminEmail}).Info("created default admin user")
		}
	}

	n, err = s.Posts.Count(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if n > 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, sp := range samplePosts {
		p := &entity.Post{
			Text:      sp.text,
			CreatedAt: now.Add(-sp.age),
			Username:  SeedAuthor,
			Tags:      []string{},
			Likes:     []string{},
			Comments:  []entity.Comment{},
		}
		if err := s.Posts.Create(ctx, p); err != nil {
			return fmt.Errorf("create sample post: %w", err)
		}
	}
	if s.Logger != nil {
		s.Logger.WithField("count", len(samplePosts)).Info("inserted sample posts")
	}
	return nil
}
