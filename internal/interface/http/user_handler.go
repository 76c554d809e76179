package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/pkg/response"
)

const maxAvatarBytes = 5 << 20

type UserHandler struct {
	Auth    *application.AuthService
	Profile *application.ProfileService
	Logger  *logrus.Logger
}

func NewUserHandler(auth *application.AuthService, profile *application.ProfileService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Auth: auth, Profile: profile, Logger: logger}
}

// GetProfile GET /api/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	u, err := h.Auth.GetProfile(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	res := gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"emails":     u.Emails,
		"profile":    u.Profile,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
	response.Success(c, http.StatusOK, res, "profile", nil)
}

// UploadAvatar POST /api/profile/avatar (multipart field "avatar")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	if fh.Size > maxAvatarBytes {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "avatar exceeds 5MB", nil)
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		response.Error[any](c, http.StatusBadRequest, "avatar must be an image", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable upload", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Profile.UploadAvatar(c.Request.Context(), c.GetString("userID"), f, fh.Filename, contentType)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"avatar": url}, "avatar updated", nil)
}

// Search GET /api/users/search?q=&size=
func (h *UserHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	if size <= 0 || size > 50 {
		size = 10
	}
	hits, err := h.Auth.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).Warn("user search failed")
		}
		response.Error[any](c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "users", map[string]any{"count": len(hits)})
}
