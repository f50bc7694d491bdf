package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/ratelimit"
	"github.com/studyhub/drive/internal/services"
)

// RegisterRoutes mounts the drive API under /api. limiter may be nil, which
// leaves every operation class unthrottled.
func RegisterRoutes(app *fiber.App, svc *services.Container, limiter ratelimit.Limiter, m *metrics.Metrics) {
	driveHandler := NewDriveHandler(svc.Drives, svc.Activity)
	foldersHandler := NewFoldersHandler(svc.Folders, svc.Trash)
	filesHandler := NewFilesHandler(svc.Files, svc.Trash)
	trashHandler := NewTrashHandler(svc.Trash)
	copyRequestsHandler := NewCopyRequestsHandler(svc.CopyRequests)
	subjectsHandler := NewSubjectsHandler(svc.Subjects)

	limit := func(class string) fiber.Handler {
		return middleware.RateLimit(limiter, class, m)
	}

	api := app.Group("/api", middleware.RequireAuth)

	driveRoutes := api.Group("/drive")
	driveRoutes.Get("/", driveHandler.Get)
	driveRoutes.Put("/", driveHandler.Update)
	driveRoutes.Get("/activity", driveHandler.Activity)

	folderRoutes := driveRoutes.Group("/folders")
	folderRoutes.Post("/", limit(ratelimit.ClassFolderCreate), foldersHandler.Create)
	folderRoutes.Get("/", foldersHandler.List)
	folderRoutes.Get("/:id/path", foldersHandler.Path)
	folderRoutes.Put("/:id", foldersHandler.Rename)
	folderRoutes.Post("/:id/copy", limit(ratelimit.ClassCopy), foldersHandler.Copy)
	folderRoutes.Delete("/:id", limit(ratelimit.ClassDelete), foldersHandler.Delete)

	fileRoutes := driveRoutes.Group("/files")
	fileRoutes.Post("/", limit(ratelimit.ClassFileUpload), filesHandler.Upload)
	fileRoutes.Post("/from-url", limit(ratelimit.ClassSaveFromURL), filesHandler.SaveFromURL)
	fileRoutes.Get("/", filesHandler.List)
	fileRoutes.Get("/:id/download", filesHandler.Download)
	fileRoutes.Get("/:id/thumbnail", filesHandler.Thumbnail)
	fileRoutes.Get("/:id", filesHandler.Get)
	fileRoutes.Put("/:id", filesHandler.Update)
	fileRoutes.Post("/:id/copy", limit(ratelimit.ClassCopy), filesHandler.Copy)
	fileRoutes.Delete("/:id", limit(ratelimit.ClassDelete), filesHandler.Delete)

	trashRoutes := driveRoutes.Group("/trash")
	trashRoutes.Get("/", trashHandler.List)
	trashRoutes.Delete("/", limit(ratelimit.ClassDelete), trashHandler.Empty)
	trashRoutes.Post("/:kind/:id/restore", limit(ratelimit.ClassRestore), trashHandler.Restore)
	trashRoutes.Delete("/:kind/:id", limit(ratelimit.ClassDelete), trashHandler.Delete)

	copyRequestRoutes := api.Group("/copy-requests")
	copyRequestRoutes.Post("/", limit(ratelimit.ClassCopyRequest), copyRequestsHandler.Create)
	copyRequestRoutes.Get("/", copyRequestsHandler.List)
	copyRequestRoutes.Post("/:id/approve", limit(ratelimit.ClassCopy), copyRequestsHandler.Approve)
	copyRequestRoutes.Post("/:id/deny", copyRequestsHandler.Deny)

	api.Post("/users/:userId/copy", limit(ratelimit.ClassCopy), copyRequestsHandler.DirectCopy)

	subjectRoutes := api.Group("/subjects")
	subjectRoutes.Post("/:id/folder", subjectsHandler.Ensure)
	subjectRoutes.Put("/:id/folder", subjectsHandler.Rename)
	subjectRoutes.Delete("/:id/folder", limit(ratelimit.ClassDelete), subjectsHandler.Delete)
}
