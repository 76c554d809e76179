package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/response"
)

const CtxUserIDKey = "userID"

// Identifier resolves an access token to the id of its signed-in user.
type Identifier interface {
	Identify(ctx context.Context, accessToken string) (string, error)
}

// Identify resolves the caller from the access_token cookie or bearer header and sets
// userID in the Gin context. Callers without a valid token continue anonymously.
func Identify(id Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := helpers.Token(c); token != "" {
			if uid, err := id.Identify(c.Request.Context(), token); err == nil {
				c.Set(CtxUserIDKey, uid)
			}
		}
		c.Next()
	}
}

// Auth rejects requests without a signed-in caller.
func Auth(id Identifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := helpers.Token(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		uid, err := id.Identify(c.Request.Context(), token)
		if err != nil || uid == "" {
			response.Abort(c, http.StatusUnauthorized, "invalid or expired session", nil)
			return
		}
		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}
