package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
)

// SubjectService keeps one folder per subject in a user's drive, named
// "Subjects - <subject name>" and tagged with the subject id.
type SubjectService struct {
	DB      *gorm.DB
	Folders *FolderService
	Trash   *TrashService
}

func NewSubjectService(db *gorm.DB, folders *FolderService, trash *TrashService) *SubjectService {
	return &SubjectService{DB: db, Folders: folders, Trash: trash}
}

func subjectFolderName(subjectName string) (string, error) {
	name, err := utils.SanitizeName(subjectName)
	if err != nil {
		return "", err
	}
	return utils.SanitizeName(models.SubjectFolderPrefix + name)
}

func findSubjectFolder(tx *gorm.DB, driveID, subjectID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := tx.Where("drive_id = ? AND subject_id = ? AND deleted_at IS NULL", driveID, subjectID).First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("subject folder not found")
		}
		return nil, errInternal("failed loading subject folder", err)
	}
	return &folder, nil
}

// Ensure returns the live subject folder, creating it at the drive root when
// there is none.
func (s *SubjectService) Ensure(ctx context.Context, userID, subjectID uuid.UUID, subjectName string) (*models.Folder, bool, error) {
	name, err := subjectFolderName(subjectName)
	if err != nil {
		return nil, false, errInvalidInput(err.Error())
	}

	var folder *models.Folder
	created := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := ensureDrive(tx, userID, s.Folders.DefaultLimit)
		if err != nil {
			return err
		}

		folder, err = findSubjectFolder(tx, drive.ID, subjectID)
		if err == nil {
			return nil
		}
		if !IsKind(err, KindNotFound) {
			return err
		}

		folder, err = s.Folders.createInTx(tx, drive.ID, nil, name, false, &subjectID)
		if err != nil {
			return err
		}
		created = true
		return s.Folders.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionSubjectEnsure,
			TargetType: "folder",
			TargetID:   idPtr(folder.ID),
			TargetName: folder.Name,
			Metadata:   map[string]interface{}{"subject_id": subjectID.String()},
		})
	})
	if err != nil {
		return nil, false, wrapInternal("failed ensuring subject folder", err)
	}

	if created {
		logger.InfoWithUser(userID.String(), "subject_folder_created", map[string]interface{}{
			"subject_id": subjectID.String(),
			"folder_id":  folder.ID.String(),
		})
	}
	return folder, created, nil
}

// Rename follows a subject rename, rewriting the paths under the folder.
func (s *SubjectService) Rename(ctx context.Context, userID, subjectID uuid.UUID, subjectName string) (*models.Folder, error) {
	name, err := subjectFolderName(subjectName)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}

	var folder *models.Folder
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return errNotFound("subject folder not found")
		}
		existing, err := findSubjectFolder(tx, drive.ID, subjectID)
		if err != nil {
			return err
		}
		oldName := existing.Name
		folder, err = s.Folders.renameInTx(tx, drive.ID, existing.ID, name)
		if err != nil {
			return err
		}
		return s.Folders.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionSubjectRename,
			TargetType: "folder",
			TargetID:   idPtr(folder.ID),
			TargetName: folder.Name,
			Metadata: map[string]interface{}{
				"subject_id": subjectID.String(),
				"old_name":   oldName,
			},
		})
	})
	if err != nil {
		return nil, wrapInternal("failed renaming subject folder", err)
	}
	return folder, nil
}

// Delete moves the subject folder and its contents to the trash.
func (s *SubjectService) Delete(ctx context.Context, userID, subjectID uuid.UUID) error {
	db := s.DB.WithContext(ctx)
	drive, err := findDrive(db, userID)
	if err != nil {
		return errNotFound("subject folder not found")
	}
	folder, err := findSubjectFolder(db, drive.ID, subjectID)
	if err != nil {
		return err
	}

	if err := s.Trash.SoftDelete(ctx, userID, ItemFolder, folder.ID); err != nil {
		return err
	}
	if err := s.Folders.Activity.Record(db, ActivityEntry{
		DriveID:    drive.ID,
		ActorID:    userID,
		Action:     ActionSubjectDelete,
		TargetType: "folder",
		TargetID:   idPtr(folder.ID),
		TargetName: folder.Name,
		Metadata: map[string]interface{}{
			"subject_id": subjectID.String(),
		},
	}); err != nil {
		return err
	}

	logger.InfoWithUser(userID.String(), "subject_folder_deleted", map[string]interface{}{
		"subject_id": subjectID.String(),
		"folder_id":  folder.ID.String(),
	})
	return nil
}
