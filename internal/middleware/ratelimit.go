package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/ratelimit"
)

// RateLimit returns an Echo middleware that charges each request
// against the named bucket.  The identifier is the authenticated user
// ID when present, otherwise the client IP, so logged-in users are
// throttled per account and anonymous traffic per address.
//
// A store failure fails open: throttling is protection, not
// correctness, and a degraded store must not take the whole site down
// with it.  The reservation core underneath makes the opposite choice.
func RateLimit(limiter *ratelimit.Limiter, bucket string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res, err := limiter.Allow(c.Request().Context(), bucket, rateIdentifier(c))
			if err != nil {
				log.Printf("ratelimit: bucket %s unavailable: %v", bucket, err)
				return next(c)
			}

			if b, ok := limiter.Bucket(bucket); ok {
				c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(b.Limit))
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				if retry < 0 {
					retry = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": retry,
					"reset_at":    res.ResetAt.UTC(),
				})
			}
			return next(c)
		}
	}
}

// rateIdentifier keys the window by user when authenticated and by IP
// otherwise.
func rateIdentifier(c echo.Context) string {
	if uid, ok := UserID(c); ok {
		return "user:" + strconv.FormatUint(uid, 10)
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
