package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/algogenius-api/internal/observability"
	"github.com/noah-isme/algogenius-api/internal/utils"
)

// RateLimit allows max requests per window for each caller of the named limiter.
// Callers are keyed by user id, or by client IP before authentication. The
// limiter sets Retry-After on rejected requests.
func RateLimit(name string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := UserID(c); id != "" {
				return name + ":user:" + id
			}
			return name + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			observability.RateLimited().WithLabelValues(name).Inc()
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests", map[string]any{
				"limiter": name,
				"limit":   max,
				"window":  window.String(),
			})
		},
	})
}
