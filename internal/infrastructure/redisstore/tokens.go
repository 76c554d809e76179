package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-social-sync/internal/application"
)

// Tokens keeps one-time tokens under "<purpose>:<token>" with the user id as value.
type Tokens struct {
	rdb *redis.Client
}

func NewTokens(rdb *redis.Client) *Tokens {
	return &Tokens{rdb: rdb}
}

func tokenKey(purpose, token string) string { return purpose + ":" + token }

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (t *Tokens) Issue(ctx context.Context, purpose, userID string, ttl time.Duration) (string, error) {
	tok, err := genToken(32)
	if err != nil {
		return "", err
	}
	if err := t.rdb.Set(ctx, tokenKey(purpose, tok), userID, ttl).Err(); err != nil {
		return "", err
	}
	return tok, nil
}

// Consume returns the token's user id and deletes the token.
func (t *Tokens) Consume(ctx context.Context, purpose, token string) (string, error) {
	if token == "" {
		return "", application.ErrTokenInvalid
	}
	uid, err := t.rdb.GetDel(ctx, tokenKey(purpose, token)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && uid == "") {
		return "", application.ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return uid, nil
}
