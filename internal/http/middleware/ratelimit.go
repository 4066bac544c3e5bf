package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clawplay/platform/internal/metrics"
	"github.com/clawplay/platform/internal/ratelimit"
	echo "github.com/labstack/echo/v4"
)

// KeyFunc derives the limiter key for a request. ok=false skips limiting
// (e.g. identity not resolved yet).
type KeyFunc func(c echo.Context) (key string, ok bool)

// RateLimit applies the in-process fixed-window limiter to a route group.
// Counters are per service instance; running several instances multiplies
// the effective limit accordingly.
func RateLimit(l *ratelimit.Limiter, scope string, limit int, window time.Duration, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}
			k, ok := key(c)
			if !ok {
				return next(c)
			}

			res := l.Check(k, limit, window)
			if !res.Allowed {
				metrics.RateLimitDecisionsTotal.WithLabelValues(scope, "limited").Inc()
				return TooManyRequests(c, res)
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues(scope, "allowed").Inc()

			return next(c)
		}
	}
}

// TooManyRequests writes the standard 429 response with rate-limit headers.
// Also used by handlers that must check limits after parsing the body.
func TooManyRequests(c echo.Context, res ratelimit.Result) error {
	retryAfter := int(time.Until(res.ResetAt).Round(time.Second) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}

	h := c.Response().Header()
	h.Set("Retry-After", strconv.Itoa(retryAfter))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"success": false,
		"error":   "Too many requests",
	})
}

// ClientIP resolves the caller address behind proxies.
func ClientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}
