package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

var validate = validator.New()

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// parseOptionalUUID treats an empty value as absent.
func parseOptionalUUID(value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}

// bindBody decodes the JSON body into dst and runs its validate tags. The
// returned error message is safe to show to the client.
func bindBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Sprintf("%s failed on '%s'", lowerFirst(e.Field()), e.Tag())
	}
	return "invalid request body"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindNameConflict, services.KindConflict:
		return fiber.StatusConflict
	case services.KindStorageExceeded:
		return fiber.StatusInsufficientStorage
	case services.KindInvalidInput:
		return fiber.StatusBadRequest
	case services.KindRateLimitExceeded:
		return fiber.StatusTooManyRequests
	case services.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError writes the envelope for an engine error. Internal failures are
// logged in full and reported generically.
func handleError(c *fiber.Ctx, action string, err error) error {
	var e *services.Error
	if !errors.As(err, &e) || e.Kind == services.KindInternal {
		details := map[string]interface{}{
			"action":     action,
			"method":     c.Method(),
			"path":       c.Path(),
			"request_id": getRequestID(c),
		}
		if userID, ok := middleware.GetUserID(c); ok {
			logger.ErrorWithUser(userID.String(), "request_failed", err, details)
		} else {
			logger.Error("request_failed", err, details)
		}
		return utils.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	if e.Data != nil {
		return utils.ErrorWithData(c, statusForKind(e.Kind), e.Message, e.Data)
	}
	return utils.Error(c, statusForKind(e.Kind), e.Message)
}
