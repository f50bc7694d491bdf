package services

import (
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/storage"
	"gorm.io/gorm"
)

// Container wires every engine service over one database and content store.
type Container struct {
	Ledger       *Ledger
	Activity     *ActivityService
	Drives       *DriveService
	Folders      *FolderService
	Files        *FileService
	Trash        *TrashService
	CopyRequests *CopyRequestService
	Subjects     *SubjectService
	Maintenance  *MaintenanceService
}

type Dependencies struct {
	DB          *gorm.DB
	Store       storage.ContentStore
	Metrics     *metrics.Metrics
	Thumbnailer Thumbnailer
	Fetcher     Fetcher
	Drive       config.DriveConfig
	Thumbnail   config.ThumbnailConfig
}

func NewContainer(deps Dependencies) *Container {
	ledger := NewLedger(deps.Metrics)
	activity := NewActivityService(deps.DB)
	defaultLimit := deps.Drive.DefaultStorageLimit

	folders := NewFolderService(deps.DB, deps.Store, ledger, activity, deps.Metrics, defaultLimit, deps.Drive.MaxFolderDepth)
	files := NewFileService(deps.DB, deps.Store, ledger, activity, folders, deps.Thumbnailer, deps.Fetcher, deps.Metrics, FileLimits{
		DefaultStorageLimit: defaultLimit,
		MaxFileSize:         deps.Drive.MaxFileSize,
		MaxTags:             deps.Drive.MaxTags,
		ThumbnailTimeout:    deps.Thumbnail.Timeout,
	})
	trash := NewTrashService(deps.DB, deps.Store, ledger, activity, deps.Metrics)

	return &Container{
		Ledger:       ledger,
		Activity:     activity,
		Drives:       NewDriveService(deps.DB, defaultLimit, activity),
		Folders:      folders,
		Files:        files,
		Trash:        trash,
		CopyRequests: NewCopyRequestService(deps.DB, folders, activity, deps.Metrics, defaultLimit),
		Subjects:     NewSubjectService(deps.DB, folders, trash),
		Maintenance:  NewMaintenanceService(deps.DB, deps.Store, ledger),
	}
}
