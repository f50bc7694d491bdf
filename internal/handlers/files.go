package handlers

import (
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

type FilesHandler struct {
	Files *services.FileService
	Trash *services.TrashService
}

func NewFilesHandler(files *services.FileService, trash *services.TrashService) *FilesHandler {
	return &FilesHandler{Files: files, Trash: trash}
}

type saveFromURLRequest struct {
	URL         string     `json:"url" validate:"required,max=2048"`
	Name        string     `json:"name" validate:"max=255"`
	FolderID    *uuid.UUID `json:"folderId"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	IsPublic    bool       `json:"isPublic"`
}

type updateFileRequest struct {
	Name        *string   `json:"name" validate:"omitempty,max=255"`
	Tags        *[]string `json:"tags"`
	Description *string   `json:"description"`
	IsPublic    *bool     `json:"isPublic"`
}

type copyFileRequest struct {
	FolderID *uuid.UUID `json:"folderId"`
	NewName  *string    `json:"newName" validate:"omitempty,max=255"`
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	folderID, err := parseOptionalUUID(c.FormValue("folderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
	}

	isPublic := false
	if raw := strings.TrimSpace(c.FormValue("isPublic")); raw != "" {
		isPublic, err = strconv.ParseBool(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid isPublic")
		}
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		logger.ErrorWithUser(userID.String(), "upload_read_failed", err, map[string]interface{}{
			"file_name": fileHeader.Filename,
			"file_size": fileHeader.Size,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading uploaded file")
	}

	file, err := h.Files.Upload(c.UserContext(), userID, services.UploadInput{
		FolderID:     folderID,
		Data:         data,
		OriginalName: fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Tags:         formTags(c),
		Description:  c.FormValue("description"),
		IsPublic:     isPublic,
	})
	if err != nil {
		return handleError(c, "file_upload", err)
	}
	return utils.Success(c, fiber.StatusCreated, file)
}

// formTags accepts repeated tags fields as well as one comma separated value.
func formTags(c *fiber.Ctx) []string {
	var values []string
	if form, err := c.MultipartForm(); err == nil {
		values = form.Value["tags"]
	}
	tags := make([]string, 0, len(values))
	for _, v := range values {
		tags = append(tags, strings.Split(v, ",")...)
	}
	return tags
}

func (h *FilesHandler) SaveFromURL(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req saveFromURLRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.Files.SaveFromURL(c.UserContext(), userID, services.SaveFromURLInput{
		URL:         req.URL,
		Name:        req.Name,
		FolderID:    req.FolderID,
		Tags:        req.Tags,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return handleError(c, "file_save_from_url", err)
	}
	return utils.Success(c, fiber.StatusCreated, file)
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseOptionalUUID(c.Query("folderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
	}

	p := utils.ParsePagination(c)
	files, total, err := h.Files.List(c.UserContext(), userID, services.ListFilesInput{
		FolderID: folderID,
		Search:   c.Query("search"),
		FileType: strings.TrimSpace(c.Query("fileType")),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		return handleError(c, "file_list", err)
	}
	return utils.Paginated(c, files, p.Page, p.Limit, total)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Files.Get(c.UserContext(), userID, fileID)
	if err != nil {
		return handleError(c, "file_get", err)
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, data, err := h.Files.Download(c.UserContext(), userID, fileID)
	if err != nil {
		return handleError(c, "file_download", err)
	}

	logger.InfoWithUser(userID.String(), "file_downloaded", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_name": file.OriginalName,
		"file_size": file.Size,
		"mime_type": file.MimeType,
	})

	c.Set(fiber.HeaderContentType, file.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}))
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *FilesHandler) Thumbnail(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	data, err := h.Files.Thumbnail(c.UserContext(), userID, fileID)
	if err != nil {
		return handleError(c, "file_thumbnail", err)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *FilesHandler) Update(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req updateFileRequest
	if err := bindBody(c, &req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.Files.Update(c.UserContext(), userID, fileID, services.UpdateFileInput{
		Name:        req.Name,
		Tags:        req.Tags,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return handleError(c, "file_update", err)
	}
	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Copy(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var req copyFileRequest
	if len(c.Body()) > 0 {
		if err := bindBody(c, &req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		}
	}

	file, err := h.Files.CopyFile(c.UserContext(), userID, fileID, services.CopyFileInput{
		FolderID: req.FolderID,
		NewName:  req.NewName,
	})
	if err != nil {
		return handleError(c, "file_copy", err)
	}
	return utils.Success(c, fiber.StatusCreated, file)
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	if err := h.Trash.SoftDelete(c.UserContext(), userID, services.ItemFile, fileID); err != nil {
		return handleError(c, "file_delete", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file moved to trash"})
}
