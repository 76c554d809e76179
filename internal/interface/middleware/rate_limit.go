package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-social-sync/pkg/response"
)

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_rate_limited_total",
	Help: "Requests rejected by a rate limit, by route",
}, []string{"route"})

// KeyFunc builds the counter key a request is limited under.
type KeyFunc func(c *gin.Context) string

// AllowFunc returns true for requests that bypass the limit.
type AllowFunc func(*gin.Context) bool

func route(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

// KeyByIP limits by client address.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:ip:" + ipFromCtx(c)
	}
}

// KeyByIPIn limits by client address under scope, keeping its counter apart from other
// address-keyed limits.
func KeyByIPIn(scope string) KeyFunc {
	return func(c *gin.Context) string {
		return "rl:" + scope + ":ip:" + ipFromCtx(c)
	}
}

// KeyByIPAndPath limits each route separately per client address.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:path:" + route(c) + ":ip:" + ipFromCtx(c)
	}
}

// KeyByUserID limits signed-in callers by user and anonymous ones by address. It must
// run after Identify or Auth.
func KeyByUserID() KeyFunc {
	return func(c *gin.Context) string {
		if uid := c.GetString(CtxUserIDKey); uid != "" {
			return "rl:user:" + uid
		}
		return "rl:user:anon:ip:" + ipFromCtx(c)
	}
}

// windowScript counts a hit and returns the count with the window's remaining ms. The
// expiry starts with the first hit of a window.
var windowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RateLimit allows max requests per window for each key using a fixed Redis window.
// It is a no-op without Redis and fails open when Redis errors. OPTIONS requests are
// never counted.
func RateLimit(rdb *redis.Client, max int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if rdb == nil || max <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (allow != nil && allow(c)) {
			c.Next()
			return
		}
		res, err := windowScript.Run(c.Request.Context(), rdb, []string{keyFn(c)}, window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			c.Next()
			return
		}
		count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
		reset := int((ttl + time.Second - 1) / time.Second)
		if reset < 0 {
			reset = 0
		}
		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > max {
			rateLimited.WithLabelValues(route(c)).Inc()
			c.Header("Retry-After", strconv.Itoa(reset))
			response.Abort(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
