package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/utils"
)

type DriveHandler struct {
	Drives      *services.DriveService
	ActivitySvc *services.ActivityService
}

func NewDriveHandler(drives *services.DriveService, activity *services.ActivityService) *DriveHandler {
	return &DriveHandler{Drives: drives, ActivitySvc: activity}
}

type updateDriveRequest struct {
	IsPrivate    *bool              `json:"isPrivate"`
	AllowCopying *models.CopyPolicy `json:"allowCopying" validate:"omitempty,oneof=ALLOW REQUEST DENY"`
}

func (h *DriveHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	summary, err := h.Drives.Summary(c.UserContext(), userID)
	if err != nil {
		return handleError(c, "drive_get", err)
	}
	return utils.Success(c, fiber.StatusOK, summary)
}

func (h *DriveHandler) Update(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateDriveRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	drive, err := h.Drives.Update(c.UserContext(), userID, services.UpdateDriveInput{
		IsPrivate:    req.IsPrivate,
		AllowCopying: req.AllowCopying,
	})
	if err != nil {
		return handleError(c, "drive_update", err)
	}
	return utils.Success(c, fiber.StatusOK, drive)
}

func (h *DriveHandler) Activity(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)
	entries, total, err := h.ActivitySvc.List(c.UserContext(), userID, p)
	if err != nil {
		return handleError(c, "activity_list", err)
	}
	return utils.Paginated(c, entries, p.Page, p.Limit, total)
}
