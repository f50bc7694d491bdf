package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/utils"
)

type FoldersHandler struct {
	Folders *services.FolderService
	Trash   *services.TrashService
}

func NewFoldersHandler(folders *services.FolderService, trash *services.TrashService) *FoldersHandler {
	return &FoldersHandler{Folders: folders, Trash: trash}
}

type createFolderRequest struct {
	Name     string     `json:"name" validate:"required,max=255"`
	ParentID *uuid.UUID `json:"parentId"`
	IsPublic bool       `json:"isPublic"`
}

type renameFolderRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type copyFolderRequest struct {
	TargetParentID *uuid.UUID `json:"targetParentId"`
	NewName        *string    `json:"newName" validate:"omitempty,max=255"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	folder, err := h.Folders.Create(c.UserContext(), userID, services.CreateFolderInput{
		ParentID: req.ParentID,
		Name:     req.Name,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		return handleError(c, "folder_create", err)
	}
	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	parentID, err := parseOptionalUUID(c.Query("parentId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentId")
	}

	folders, err := h.Folders.List(c.UserContext(), userID, parentID)
	if err != nil {
		return handleError(c, "folder_list", err)
	}
	return utils.Success(c, fiber.StatusOK, folders)
}

func (h *FoldersHandler) Path(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	path, err := h.Folders.Ancestors(c.UserContext(), userID, folderID)
	if err != nil {
		return handleError(c, "folder_path", err)
	}
	return utils.Success(c, fiber.StatusOK, path)
}

func (h *FoldersHandler) Rename(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req renameFolderRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	folder, err := h.Folders.Rename(c.UserContext(), userID, folderID, req.Name)
	if err != nil {
		return handleError(c, "folder_rename", err)
	}
	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *FoldersHandler) Copy(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var req copyFolderRequest
	if len(c.Body()) > 0 {
		if err := bindBody(c, &req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
	}

	folder, err := h.Folders.CopySubtree(c.UserContext(), userID, folderID, services.CopyFolderInput{
		TargetParentID: req.TargetParentID,
		NewName:        req.NewName,
	})
	if err != nil {
		return handleError(c, "folder_copy", err)
	}
	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	if err := h.Trash.SoftDelete(c.UserContext(), userID, services.ItemFolder, folderID); err != nil {
		return handleError(c, "folder_delete", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "folder moved to trash"})
}
