package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/utils"
)

type TrashHandler struct {
	Trash *services.TrashService
}

func NewTrashHandler(trash *services.TrashService) *TrashHandler {
	return &TrashHandler{Trash: trash}
}

func (h *TrashHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listing, err := h.Trash.List(c.UserContext(), userID)
	if err != nil {
		return handleError(c, "trash_list", err)
	}
	return utils.Success(c, fiber.StatusOK, listing)
}

func (h *TrashHandler) Restore(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	kind, err := services.ParseItemKind(c.Params("kind"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "kind must be file or folder")
	}
	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	if err := h.Trash.Restore(c.UserContext(), userID, kind, itemID); err != nil {
		return handleError(c, "trash_restore", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item restored"})
}

func (h *TrashHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	kind, err := services.ParseItemKind(c.Params("kind"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "kind must be file or folder")
	}
	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}

	if err := h.Trash.HardDelete(c.UserContext(), userID, kind, itemID); err != nil {
		return handleError(c, "trash_delete", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item permanently deleted"})
}

func (h *TrashHandler) Empty(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	purged, err := h.Trash.Empty(c.UserContext(), userID)
	if err != nil {
		return handleError(c, "trash_empty", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"purged": purged})
}
