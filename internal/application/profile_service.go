package application

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

// ProfileInput is the payload of updateUserProfile. An empty Avatar leaves the stored
// avatar untouched.
type ProfileInput struct {
	Name   *string `json:"name" validate:"required"`
	Bio    *string `json:"bio" validate:"required"`
	Avatar string  `json:"avatar,omitempty"`
}

type ProfileService struct {
	Users    repository.UserRepository
	Sessions SessionStore
	Index    UserIndex
	Objects  ObjectStore
	Logger   *logrus.Logger
}

func NewProfileService(users repository.UserRepository, sessions SessionStore, index UserIndex, objects ObjectStore, logger *logrus.Logger) *ProfileService {
	return &ProfileService{Users: users, Sessions: sessions, Index: index, Objects: objects, Logger: logger}
}

// Update merges name, bio and optionally avatar into caller's profile and returns the
// number of users updated.
func (s *ProfileService) Update(ctx context.Context, caller string, in ProfileInput) (int, error) {
	if caller == "" {
		return 0, NotAuthorized("You must be logged in to update profile")
	}
	now := time.Now().UTC()
	patch := repository.ProfilePatch{Name: in.Name, Bio: in.Bio, UpdatedAt: &now}
	if in.Avatar != "" {
		patch.Avatar = &in.Avatar
	}
	u, err := s.Users.UpdateProfile(ctx, caller, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", caller).Error("update profile failed")
		}
		return 0, Internal("Failed to update profile information", err)
	}
	s.afterChange(ctx, u)
	return 1, nil
}

// UploadAvatar stores an image and points caller's avatar at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, caller string, r io.Reader, filename, contentType string) (string, error) {
	if caller == "" {
		return "", NotAuthorized("You must be logged in to update profile")
	}
	if s.Objects == nil {
		return "", Internal("Avatar uploads are not configured", nil)
	}
	if _, err := s.Users.GetByID(ctx, caller); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", UserNotFound()
		}
		return "", Internal("", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", caller, uuid.NewString()+ext))
	url, err := s.Objects.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", caller).Error("avatar upload failed")
		}
		return "", Internal("Failed to upload avatar", err)
	}
	now := time.Now().UTC()
	u, err := s.Users.UpdateProfile(ctx, caller, repository.ProfilePatch{Avatar: &url, UpdatedAt: &now})
	if err != nil {
		return "", Internal("Failed to update profile information", err)
	}
	s.afterChange(ctx, u)
	return url, nil
}

// afterChange refreshes the session cache and search index. Both are best effort.
func (s *ProfileService) afterChange(ctx context.Context, u *entity.User) {
	if s.Sessions != nil {
		fields := map[string]any{
			"name":       u.Profile.Name,
			"avatar_url": u.Profile.Avatar,
			"updated_at": nowRFC3339(),
		}
		if err := s.Sessions.Save(ctx, u.ID, "", fields, 0); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("session refresh failed")
		}
	}
	if s.Index != nil {
		if err := s.Index.IndexUser(ctx, u); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
