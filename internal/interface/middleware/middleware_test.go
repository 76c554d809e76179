package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
)

type tokens map[string]string

func (t tokens) Identify(_ context.Context, token string) (string, error) {
	if uid, ok := t[token]; ok {
		return uid, nil
	}
	return "", errors.New("invalid")
}

func serve(r *gin.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ids := tokens{"good": "u1"}
	r.Use(RequestIDMiddleware(), RealIP())
	r.GET("/open", Identify(ids), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxUserIDKey)) })
	r.GET("/closed", Auth(ids), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxUserIDKey)) })
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, ipFromCtx(c)) })
	return r
}

func TestIdentifyLeavesBadTokensAnonymous(t *testing.T) {
	r := newEngine()
	rec := serve(r, "/open", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "")

	rec = serve(r, "/open", http.Header{"Authorization": {"Bearer nope"}})
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "")

	rec = serve(r, "/open", http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, rec.Body.String(), "u1")

	rec = serve(r, "/open", http.Header{"Cookie": {"access_token=good"}})
	assert.Equal(t, rec.Body.String(), "u1")
}

func TestAuthRejectsAnonymousCallers(t *testing.T) {
	r := newEngine()
	assert.Equal(t, serve(r, "/closed", nil).Code, http.StatusUnauthorized)
	assert.Equal(t, serve(r, "/closed", http.Header{"Authorization": {"Bearer nope"}}).Code, http.StatusUnauthorized)

	rec := serve(r, "/closed", http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "u1")
}

func TestRealIPPrefersProxyHeaders(t *testing.T) {
	r := newEngine()
	rec := serve(r, "/ip", http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}})
	assert.Equal(t, rec.Body.String(), "203.0.113.7")

	rec = serve(r, "/ip", http.Header{"Cf-Connecting-Ip": {"198.51.100.2"}, "X-Forwarded-For": {"203.0.113.7"}})
	assert.Equal(t, rec.Body.String(), "198.51.100.2")

	rec = serve(r, "/ip", http.Header{"X-Real-Ip": {"not-an-ip"}})
	assert.Equal(t, rec.Body.String(), "192.0.2.1")
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newEngine()
	rec := serve(r, "/open", nil)
	assert.NotEqual(t, rec.Header().Get("X-Request-ID"), "")

	id := "6f1c1a44-3a1e-4c43-9a36-0a5f0f1b2c3d"
	rec = serve(r, "/open", http.Header{"X-Request-Id": {id}})
	assert.Equal(t, rec.Header().Get("X-Request-ID"), id)
}

func TestAllowPrivateIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	allow := AllowPrivateIP()
	for ip, want := range map[string]bool{"10.1.2.3": true, "127.0.0.1": true, "192.168.0.9": true, "8.8.8.8": false} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set(CtxRealIPKey, ip)
		assert.Equal(t, allow(c), want)
	}
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RateLimit(nil, 1, time.Minute, KeyByIP(), nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, serve(r, "/", nil).Code, http.StatusNoContent)
	}
}
