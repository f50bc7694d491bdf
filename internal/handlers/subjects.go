package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/utils"
)

// SubjectsHandler serves the subject service's hooks that keep one folder
// per subject in the owner's drive.
type SubjectsHandler struct {
	Subjects *services.SubjectService
}

func NewSubjectsHandler(subjects *services.SubjectService) *SubjectsHandler {
	return &SubjectsHandler{Subjects: subjects}
}

type subjectFolderRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (h *SubjectsHandler) Ensure(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	subjectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid subject id")
	}

	var req subjectFolderRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	folder, created, err := h.Subjects.Ensure(c.UserContext(), userID, subjectID, req.Name)
	if err != nil {
		return handleError(c, "subject_folder_ensure", err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return utils.Success(c, status, folder)
}

func (h *SubjectsHandler) Rename(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	subjectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid subject id")
	}

	var req subjectFolderRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	folder, err := h.Subjects.Rename(c.UserContext(), userID, subjectID, req.Name)
	if err != nil {
		return handleError(c, "subject_folder_rename", err)
	}
	return utils.Success(c, fiber.StatusOK, folder)
}

func (h *SubjectsHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	subjectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid subject id")
	}

	if err := h.Subjects.Delete(c.UserContext(), userID, subjectID); err != nil {
		return handleError(c, "subject_folder_delete", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "subject folder moved to trash"})
}
