package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxRealIPKey = "real_ip"

// RealIP stores the originating client address under real_ip. Proxy headers are
// consulted in order CF-Connecting-IP, X-Real-IP, then the left-most X-Forwarded-For
// entry; unparsable values are ignored in favour of c.ClientIP().
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxRealIPKey, resolveIP(c))
		c.Next()
	}
}

func resolveIP(c *gin.Context) string {
	candidates := []string{c.GetHeader("CF-Connecting-IP"), c.GetHeader("X-Real-IP")}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append(candidates, first)
	}
	for _, h := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(h)); ip != nil {
			return ip.String()
		}
	}
	return c.ClientIP()
}

// ipFromCtx returns the address set by RealIP, falling back to c.ClientIP().
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString(CtxRealIPKey); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// AllowPrivateIP exempts loopback and private-network callers, such as in-cluster
// scrapers, from a rate limit.
func AllowPrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		ip := net.ParseIP(ipFromCtx(c))
		return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
	}
}
