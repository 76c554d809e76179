package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/changefeed"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/memory"
	handlers "github.com/oksasatya/go-social-sync/internal/interface/http"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/validation"
)

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Error   string            `json:"error"`
		Reason  string            `json:"reason"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	cfg := &config.Config{FeedLimit: 50, TagLimit: 50}
	store := memory.NewStore()
	feed := livequery.NewFeed()
	repos := changefeed.Wrap(changefeed.Repositories{
		Users:        store.Users(),
		Posts:        store.Posts(),
		Tags:         store.Tags(),
		Messages:     store.Messages(),
		Transactions: store.Transactions(),
	}, feed)
	sessions := memory.NewSessions()
	tokens := memory.NewTokens()
	jwt := helpers.NewJWTManager("a", "r", time.Hour, time.Hour)
	auth := application.NewAuthService(repos.Users, jwt, sessions, tokens, nil, nil, cfg, nil)
	profile := application.NewProfileService(repos.Users, sessions, nil, nil, nil)
	gw := application.NewGateway(application.Services{
		Posts:   application.NewPostService(repos.Posts, repos.Users, application.NewTagCounter(repos.Tags, nil), nil),
		Profile: profile,
	}, nil)
	pub := livequery.NewPublisher(feed, nil)
	(&application.Publications{Repos: repos, FeedLimit: cfg.FeedLimit, TagLimit: cfg.TagLimit}).Register(pub)

	authH := handlers.NewAuthHandler(auth, application.NewVerificationService(repos.Users, tokens, nil, cfg, nil), nil, "", false)
	userH := handlers.NewUserHandler(auth, profile, nil)
	syncH := handlers.NewSyncHandler(gw, pub, nil)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")
	api.POST("/signup", authH.Signup)
	api.POST("/login", authH.Login)
	api.POST("/auth/reset/init", authH.ResetInit)
	api.GET("/profile", middleware.Auth(auth), userH.GetProfile)
	api.POST("/profile/avatar", middleware.Auth(auth), userH.UploadAvatar)
	open := api.Group("/", middleware.Identify(auth))
	open.POST("/methods/:name", syncH.Call)
	open.GET("/publications/:name", syncH.Snapshot)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec.Code, env
}

func signup(t *testing.T, r *gin.Engine, email, username string) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]string{"email": email, "password": "password123", "username": username})
	req := httptest.NewRequest(http.MethodPost, "/api/signup", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data application.LoginResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" {
			return env.Data.UserID, c.Value
		}
	}
	t.Fatal("signup set no access_token cookie")
	return "", ""
}

func TestSignupValidatesPayload(t *testing.T) {
	r := newRouter(t)
	code, env := do(t, r, http.MethodPost, "/api/signup", map[string]string{"email": "nope", "password": "short"}, "")
	assert.Equal(t, code, http.StatusBadRequest)
	assert.Equal(t, env.Success, false)

	signup(t, r, "alice@example.com", "alice")
	code, _ = do(t, r, http.MethodPost, "/api/signup", map[string]string{"email": "alice@example.com", "password": "password123"}, "")
	assert.Equal(t, code, http.StatusConflict)
}

func TestLogin(t *testing.T) {
	r := newRouter(t)
	signup(t, r, "alice@example.com", "alice")

	code, _ := do(t, r, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, code, http.StatusUnauthorized)

	code, env := do(t, r, http.MethodPost, "/api/login", map[string]string{"email": "alice@example.com", "password": "password123"}, "")
	assert.Equal(t, code, http.StatusOK)
	assert.Equal(t, env.Success, true)
}

func TestProfileRequiresSession(t *testing.T) {
	r := newRouter(t)
	code, env := do(t, r, http.MethodGet, "/api/profile", nil, "")
	assert.Equal(t, code, http.StatusUnauthorized)
	assert.Equal(t, env.Message, "missing access token")

	code, _ = do(t, r, http.MethodGet, "/api/profile", nil, "garbage")
	assert.Equal(t, code, http.StatusUnauthorized)

	uid, token := signup(t, r, "alice@example.com", "alice")
	code, env = do(t, r, http.MethodGet, "/api/profile", nil, token)
	assert.Equal(t, code, http.StatusOK)
	var profile struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	_ = json.Unmarshal(env.Data, &profile)
	assert.Equal(t, profile.ID, uid)
	assert.Equal(t, profile.Username, "alice")
}

func TestAvatarUploadWithoutStorage(t *testing.T) {
	r := newRouter(t)
	_, token := signup(t, r, "alice@example.com", "alice")
	code, _ := do(t, r, http.MethodPost, "/api/profile/avatar", nil, token)
	assert.Equal(t, code, http.StatusBadRequest)
}

func TestMethodsOverHTTP(t *testing.T) {
	r := newRouter(t)
	code, env := do(t, r, http.MethodPost, "/api/methods/posts.insert", map[string]any{"params": []any{"hi"}}, "")
	assert.Equal(t, code, http.StatusUnauthorized)
	assert.Equal(t, env.Error.Error, "not-authorized")
	assert.Equal(t, env.Error.Reason, "You must be logged in to create a post")

	code, env = do(t, r, http.MethodPost, "/api/methods/posts.fly", nil, "")
	assert.Equal(t, code, http.StatusNotFound)
	assert.Equal(t, env.Error.Error, "not-found")

	uid, token := signup(t, r, "alice@example.com", "alice")
	code, env = do(t, r, http.MethodPost, "/api/methods/posts.insert", map[string]any{"params": []any{"hello #go"}}, token)
	assert.Equal(t, code, http.StatusOK)
	var res struct {
		Result string `json:"result"`
	}
	_ = json.Unmarshal(env.Data, &res)
	assert.NotEqual(t, res.Result, "")

	code, env = do(t, r, http.MethodGet, "/api/publications/userPosts?param="+uid, nil, "")
	assert.Equal(t, code, http.StatusOK)
	var snap struct {
		Collection string           `json:"collection"`
		Documents  []map[string]any `json:"documents"`
	}
	_ = json.Unmarshal(env.Data, &snap)
	assert.Equal(t, snap.Collection, "posts")
	assert.Equal(t, len(snap.Documents), 1)
	assert.Equal(t, snap.Documents[0]["_id"], res.Result)
	assert.Equal(t, snap.Documents[0]["text"], "hello #go")

	code, env = do(t, r, http.MethodGet, "/api/publications/tags", nil, "")
	assert.Equal(t, code, http.StatusOK)
	_ = json.Unmarshal(env.Data, &snap)
	assert.Equal(t, snap.Collection, "tags")
	assert.Equal(t, len(snap.Documents), 1)
	assert.Equal(t, snap.Documents[0]["_id"], "go")
}

func TestPublicationsOverHTTP(t *testing.T) {
	r := newRouter(t)
	code, env := do(t, r, http.MethodGet, "/api/publications/nothing", nil, "")
	assert.Equal(t, code, http.StatusNotFound)
	assert.Equal(t, env.Error.Reason, "Subscription not found")

	code, env = do(t, r, http.MethodGet, "/api/publications/userPosts", nil, "")
	assert.Equal(t, code, http.StatusBadRequest)
	assert.Equal(t, env.Error.Error, "validation-error")

	code, env = do(t, r, http.MethodGet, "/api/publications/userData", nil, "")
	assert.Equal(t, code, http.StatusOK)
	var snap struct {
		Documents []map[string]any `json:"documents"`
	}
	_ = json.Unmarshal(env.Data, &snap)
	assert.Equal(t, len(snap.Documents), 0)
}

func TestResetInitDoesNotRevealAccounts(t *testing.T) {
	r := newRouter(t)
	signup(t, r, "alice@example.com", "alice")
	known, _ := do(t, r, http.MethodPost, "/api/auth/reset/init", map[string]string{"email": "alice@example.com"}, "")
	unknown, _ := do(t, r, http.MethodPost, "/api/auth/reset/init", map[string]string{"email": "bob@example.com"}, "")
	assert.Equal(t, known, http.StatusAccepted)
	assert.Equal(t, unknown, http.StatusAccepted)
}
