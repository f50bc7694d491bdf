package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/utils"
)

type CopyRequestsHandler struct {
	CopyRequests *services.CopyRequestService
}

func NewCopyRequestsHandler(copyRequests *services.CopyRequestService) *CopyRequestsHandler {
	return &CopyRequestsHandler{CopyRequests: copyRequests}
}

type createCopyRequestRequest struct {
	ToUserID uuid.UUID              `json:"toUserId" validate:"required"`
	Type     models.CopyRequestType `json:"type" validate:"required,oneof=subject file folder"`
	TargetID uuid.UUID              `json:"targetId" validate:"required"`
	Message  *string                `json:"message" validate:"omitempty,max=500"`
}

type directCopyRequest struct {
	Type     models.CopyRequestType `json:"type" validate:"required,oneof=subject file folder"`
	TargetID uuid.UUID              `json:"targetId" validate:"required"`
}

func (h *CopyRequestsHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createCopyRequestRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	request, err := h.CopyRequests.Create(c.UserContext(), userID, services.CreateCopyRequestInput{
		ToUserID: req.ToUserID,
		Type:     req.Type,
		TargetID: req.TargetID,
		Message:  req.Message,
	})
	if err != nil {
		return handleError(c, "copy_request_create", err)
	}
	return utils.Success(c, fiber.StatusCreated, request)
}

func (h *CopyRequestsHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	in := services.ListCopyRequestsInput{Incoming: true}
	switch strings.ToLower(strings.TrimSpace(c.Query("direction"))) {
	case "", "incoming":
	case "outgoing":
		in.Incoming = false
	default:
		return utils.Error(c, fiber.StatusBadRequest, "direction must be incoming or outgoing")
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.CopyRequestStatus(strings.ToUpper(raw))
		switch status {
		case models.CopyRequestPending, models.CopyRequestApproved, models.CopyRequestDenied:
			in.Status = &status
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
	}

	p := utils.ParsePagination(c)
	in.Page, in.Limit = p.Page, p.Limit

	requests, total, err := h.CopyRequests.List(c.UserContext(), userID, in)
	if err != nil {
		return handleError(c, "copy_request_list", err)
	}
	return utils.Paginated(c, requests, p.Page, p.Limit, total)
}

func (h *CopyRequestsHandler) Approve(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	requestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid copy request id")
	}

	request, err := h.CopyRequests.Approve(c.UserContext(), userID, requestID)
	if err != nil {
		return handleError(c, "copy_request_approve", err)
	}
	return utils.Success(c, fiber.StatusOK, request)
}

func (h *CopyRequestsHandler) Deny(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	requestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid copy request id")
	}

	request, err := h.CopyRequests.Deny(c.UserContext(), userID, requestID)
	if err != nil {
		return handleError(c, "copy_request_deny", err)
	}
	return utils.Success(c, fiber.StatusOK, request)
}

// DirectCopy copies content out of another user's drive without a request
// when that drive allows copying.
func (h *CopyRequestsHandler) DirectCopy(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	ownerID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req directCopyRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.CopyRequests.DirectCopy(c.UserContext(), userID, ownerID, req.Type, req.TargetID)
	if err != nil {
		return handleError(c, "direct_copy", err)
	}
	return utils.Success(c, fiber.StatusCreated, result)
}
