package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/ratelimit"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

// RateLimit charges one request of class to the authenticated caller. It
// must run after RequireAuth. A failing limiter backend lets the request
// through.
func RateLimit(limiter ratelimit.Limiter, class string, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetUserID(c)
		if !ok || limiter == nil {
			return c.Next()
		}

		decision, err := limiter.Check(c.UserContext(), userID, class)
		if err != nil {
			logger.ErrorWithUser(userID.String(), "rate_limit_check_failed", err, map[string]interface{}{
				"class": class,
				"path":  c.Path(),
			})
			return c.Next()
		}

		if decision.Limit > 0 {
			c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if decision.Allowed {
			return c.Next()
		}

		m.RateLimited(class)
		retryAfter := int(time.Until(decision.ResetAt).Seconds() + 0.999)
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))

		logger.WarnWithUser(userID.String(), "rate_limit_exceeded", map[string]interface{}{
			"class":      class,
			"path":       c.Path(),
			"reset_time": decision.ResetAt.UTC().Format(time.RFC3339),
		})
		e := services.ErrRateLimited(class, decision.ResetAt)
		return utils.ErrorWithData(c, fiber.StatusTooManyRequests, e.Message, e.Data)
	}
}
