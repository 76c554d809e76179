package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions stores one hash per user under user:session:<id>. The "sid" field holds the
// current session id. Saving without a sid only refreshes an existing session.
type Sessions struct {
	rdb *redis.Client
}

func NewSessions(rdb *redis.Client) *Sessions {
	return &Sessions{rdb: rdb}
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func (s *Sessions) Save(ctx context.Context, userID, sid string, fields map[string]any, ttl time.Duration) error {
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	if sid != "" {
		values["sid"] = sid
	}
	if len(values) == 0 {
		return nil
	}
	key := sessionKey(userID)
	if sid == "" {
		n, err := s.rdb.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return err
		}
	}
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, values)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Sessions) SessionID(ctx context.Context, userID string) (string, error) {
	sid, err := s.rdb.HGet(ctx, sessionKey(userID), "sid").Result()
	if err == redis.Nil {
		return "", nil
	}
	return sid, err
}

func (s *Sessions) Delete(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, sessionKey(userID)).Err()
}
