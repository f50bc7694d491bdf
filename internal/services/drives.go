package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DriveService struct {
	DB           *gorm.DB
	DefaultLimit int64
	Activity     *ActivityService
}

func NewDriveService(db *gorm.DB, defaultLimit int64, activity *ActivityService) *DriveService {
	return &DriveService{DB: db, DefaultLimit: defaultLimit, Activity: activity}
}

type DriveSummary struct {
	Drive       *models.Drive `json:"drive"`
	FileCount   int64         `json:"fileCount"`
	FolderCount int64         `json:"folderCount"`
	TrashCount  int64         `json:"trashCount"`
}

type UpdateDriveInput struct {
	IsPrivate    *bool
	AllowCopying *models.CopyPolicy
}

// ensureDrive returns the owner's drive, creating it on first use. Concurrent
// callers converge on one row through the unique owner index.
func ensureDrive(tx *gorm.DB, ownerID uuid.UUID, defaultLimit int64) (*models.Drive, error) {
	var drive models.Drive
	err := tx.First(&drive, "owner_id = ?", ownerID).Error
	if err == nil {
		return &drive, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInternal("failed loading drive", err)
	}

	fresh := models.Drive{
		OwnerID:      ownerID,
		StorageLimit: defaultLimit,
		AllowCopying: models.CopyPolicyRequest,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, errInternal("failed creating drive", err)
	}

	if err := tx.First(&drive, "owner_id = ?", ownerID).Error; err != nil {
		return nil, errInternal("failed loading drive", err)
	}
	if drive.ID == fresh.ID {
		logger.InfoWithUser(ownerID.String(), "drive_created", map[string]interface{}{
			"drive_id":      drive.ID.String(),
			"storage_limit": drive.StorageLimit,
		})
	}
	return &drive, nil
}

// findDrive loads an existing drive without creating one.
func findDrive(tx *gorm.DB, ownerID uuid.UUID) (*models.Drive, error) {
	var drive models.Drive
	if err := tx.First(&drive, "owner_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("drive not found")
		}
		return nil, errInternal("failed loading drive", err)
	}
	return &drive, nil
}

// lockDrive holds a row lock on the drive until the transaction ends. Checks
// that must stay true until an insert commits (sibling names, pending copy
// requests) run after it, so writers to the same drive go one at a time.
// SQLite has no row locks and already allows a single writer.
func lockDrive(tx *gorm.DB, driveID uuid.UUID) error {
	var drive models.Drive
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").First(&drive, "id = ?", driveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("drive not found")
		}
		return errInternal("failed locking drive", err)
	}
	return nil
}

func (s *DriveService) GetOrCreate(ctx context.Context, ownerID uuid.UUID) (*models.Drive, error) {
	return ensureDrive(s.DB.WithContext(ctx), ownerID, s.DefaultLimit)
}

func (s *DriveService) Summary(ctx context.Context, ownerID uuid.UUID) (*DriveSummary, error) {
	drive, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	summary := &DriveSummary{Drive: drive}
	if err := db.Model(&models.File{}).Where("drive_id = ? AND deleted_at IS NULL", drive.ID).Count(&summary.FileCount).Error; err != nil {
		return nil, errInternal("failed counting files", err)
	}
	if err := db.Model(&models.Folder{}).Where("drive_id = ? AND deleted_at IS NULL", drive.ID).Count(&summary.FolderCount).Error; err != nil {
		return nil, errInternal("failed counting folders", err)
	}

	var trashedFiles, trashedFolders int64
	if err := db.Model(&models.File{}).Where("drive_id = ? AND deleted_at IS NOT NULL", drive.ID).Count(&trashedFiles).Error; err != nil {
		return nil, errInternal("failed counting trash", err)
	}
	if err := db.Model(&models.Folder{}).Where("drive_id = ? AND deleted_at IS NOT NULL", drive.ID).Count(&trashedFolders).Error; err != nil {
		return nil, errInternal("failed counting trash", err)
	}
	summary.TrashCount = trashedFiles + trashedFolders

	return summary, nil
}

func (s *DriveService) Update(ctx context.Context, ownerID uuid.UUID, in UpdateDriveInput) (*models.Drive, error) {
	if in.AllowCopying != nil && !in.AllowCopying.Valid() {
		return nil, errInvalidInput("allowCopying must be ALLOW, REQUEST or DENY")
	}

	var drive *models.Drive
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		drive, err = ensureDrive(tx, ownerID, s.DefaultLimit)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.IsPrivate != nil {
			updates["is_private"] = *in.IsPrivate
			drive.IsPrivate = *in.IsPrivate
		}
		if in.AllowCopying != nil {
			updates["allow_copying"] = *in.AllowCopying
			drive.AllowCopying = *in.AllowCopying
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.Drive{}).Where("id = ?", drive.ID).Updates(updates).Error; err != nil {
			return errInternal("failed updating drive", err)
		}

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    ownerID,
			Action:     ActionDriveUpdate,
			TargetType: "drive",
			TargetID:   idPtr(drive.ID),
			TargetName: "drive",
			Metadata:   updates,
		})
	})
	if err != nil {
		return nil, wrapInternal("failed updating drive", err)
	}
	return drive, nil
}

// SetStorageLimit changes a drive's limit. Lowering it below current usage is
// allowed; further writes are then rejected until usage drops.
func (s *DriveService) SetStorageLimit(ctx context.Context, ownerID uuid.UUID, limit int64) (*models.Drive, error) {
	if limit < 0 {
		return nil, errInvalidInput("storage limit must not be negative")
	}
	drive, err := s.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Drive{}).Where("id = ?", drive.ID).Update("storage_limit", limit).Error; err != nil {
		return nil, errInternal("failed updating storage limit", err)
	}
	drive.StorageLimit = limit
	return drive, nil
}
