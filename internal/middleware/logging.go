package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger writes one entry per request with its outcome and timing. A
// caller supplied X-Request-ID is kept and echoed back.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		start := time.Now()
		requestID := c.Get(requestIDHeader)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Locals("requestID", requestID)
		c.Set(requestIDHeader, requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          c.Path(),
			"status_code":   statusCode,
			"latency_ms":    time.Since(start).Milliseconds(),
			"user_agent":    c.Get(fiber.HeaderUserAgent),
			"ip":            c.IP(),
			"request_body":  logger.GetRequestBodySummary(c),
			"response_body": logger.GetResponseSizeSummary(c),
			"request_id":    requestID,
		}

		userID := logger.GetUserIDFromContext(c)
		switch {
		case statusCode >= fiber.StatusInternalServerError && userID != nil:
			logger.ErrorWithUser(*userID, "http_request", err, details)
		case statusCode >= fiber.StatusInternalServerError:
			logger.Error("http_request", err, details)
		case statusCode >= fiber.StatusBadRequest && userID != nil:
			logger.WarnWithUser(*userID, "http_request", details)
		case statusCode >= fiber.StatusBadRequest:
			logger.Warn("http_request", details)
		case userID != nil:
			logger.InfoWithUser(*userID, "http_request", details)
		default:
			logger.Info("http_request", details)
		}

		return err
	}
}

var securityEvents = map[int]string{
	fiber.StatusUnauthorized:    "auth_rejected",
	fiber.StatusForbidden:       "access_denied",
	fiber.StatusNotFound:        "not_found",
	fiber.StatusTooManyRequests: "request_throttled",
}

// SecurityLogger records rejected, denied, throttled and missing-resource
// responses. Probing another user's ids shows up here as not_found.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		action, ok := securityEvents[statusCode]
		if !ok {
			return err
		}

		details := map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"ip":         c.IP(),
			"request_id": c.Locals("requestID"),
		}
		if statusCode == fiber.StatusTooManyRequests {
			details["retry_after"] = string(c.Response().Header.Peek(fiber.HeaderRetryAfter))
		}

		if userID := logger.GetUserIDFromContext(c); userID != nil {
			logger.WarnWithUser(*userID, action, details)
		} else {
			logger.Warn(action+"_unauthenticated", details)
		}
		return err
	}
}
