package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
)

const (
	ActionFileUpload         = "file.upload"
	ActionFileSaveFromURL    = "file.save_from_url"
	ActionFileCopy           = "file.copy"
	ActionFileUpdate         = "file.update"
	ActionFileDelete         = "file.delete"
	ActionFileRestore        = "file.restore"
	ActionFilePurge          = "file.purge"
	ActionFolderCreate       = "folder.create"
	ActionFolderCopy         = "folder.copy"
	ActionFolderRename       = "folder.rename"
	ActionFolderDelete       = "folder.delete"
	ActionFolderRestore      = "folder.restore"
	ActionFolderPurge        = "folder.purge"
	ActionCopyRequestCreate  = "copy_request.create"
	ActionCopyRequestApprove = "copy_request.approve"
	ActionCopyRequestDeny    = "copy_request.deny"
	ActionDirectCopy         = "copy.direct"
	ActionDriveUpdate        = "drive.update"
	ActionSubjectEnsure      = "subject_folder.ensure"
	ActionSubjectRename      = "subject_folder.rename"
	ActionSubjectDelete      = "subject_folder.delete"
)

type ActivityEntry struct {
	DriveID    uuid.UUID
	ActorID    uuid.UUID
	Action     string
	TargetType string
	TargetID   *uuid.UUID
	TargetName string
	Metadata   map[string]interface{}
}

// ActivityService appends to the drive activity feed. Writes always go
// through the caller's transaction.
type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

func (s *ActivityService) Record(tx *gorm.DB, entry ActivityEntry) error {
	row := models.ActivityLogEntry{
		DriveID:    entry.DriveID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		TargetName: entry.TargetName,
		Metadata:   entry.Metadata,
	}
	if err := tx.Create(&row).Error; err != nil {
		return errInternal("failed recording activity", err)
	}
	return nil
}

// List returns the newest entries of the caller's drive first.
func (s *ActivityService) List(ctx context.Context, userID uuid.UUID, p utils.PaginationParams) ([]models.ActivityLogEntry, int64, error) {
	var drive models.Drive
	if err := s.DB.WithContext(ctx).First(&drive, "owner_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return []models.ActivityLogEntry{}, 0, nil
		}
		return nil, 0, errInternal("failed loading drive", err)
	}

	query := s.DB.WithContext(ctx).Model(&models.ActivityLogEntry{}).Where("drive_id = ?", drive.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errInternal("failed counting activity", err)
	}

	entries := make([]models.ActivityLogEntry, 0)
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&entries).Error; err != nil {
		return nil, 0, errInternal("failed listing activity", err)
	}
	return entries, total, nil
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
