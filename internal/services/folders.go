package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
)

type FolderService struct {
	DB           *gorm.DB
	Store        storage.ContentStore
	Ledger       *Ledger
	Activity     *ActivityService
	Metrics      *metrics.Metrics
	DefaultLimit int64
	MaxDepth     int
}

func NewFolderService(db *gorm.DB, store storage.ContentStore, ledger *Ledger, activity *ActivityService, m *metrics.Metrics, defaultLimit int64, maxDepth int) *FolderService {
	return &FolderService{
		DB:           db,
		Store:        store,
		Ledger:       ledger,
		Activity:     activity,
		Metrics:      m,
		DefaultLimit: defaultLimit,
		MaxDepth:     maxDepth,
	}
}

type CreateFolderInput struct {
	ParentID  *uuid.UUID
	Name      string
	IsPublic  bool
	SubjectID *uuid.UUID
}

type CopyFolderInput struct {
	TargetParentID *uuid.UUID
	NewName        *string
}

type FolderPath struct {
	Path      string          `json:"path"`
	Ancestors []models.Folder `json:"ancestors"`
}

func (s *FolderService) Create(ctx context.Context, userID uuid.UUID, in CreateFolderInput) (*models.Folder, error) {
	start := time.Now()
	name, err := utils.SanitizeName(in.Name)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}

	var folder *models.Folder
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := ensureDrive(tx, userID, s.DefaultLimit)
		if err != nil {
			return err
		}

		folder, err = s.createInTx(tx, drive.ID, in.ParentID, name, in.IsPublic, in.SubjectID)
		if err != nil {
			return err
		}

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionFolderCreate,
			TargetType: "folder",
			TargetID:   idPtr(folder.ID),
			TargetName: folder.Name,
			Metadata:   map[string]interface{}{"path": folder.Path},
		})
	})
	s.Metrics.ObserveOperation("folder_create", start, err)
	if err != nil {
		return nil, wrapInternal("failed creating folder", err)
	}

	logger.InfoWithUser(userID.String(), "folder_created", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"path":      folder.Path,
	})
	return folder, nil
}

// createInTx validates the parent and sibling names and inserts the folder.
func (s *FolderService) createInTx(tx *gorm.DB, driveID uuid.UUID, parentID *uuid.UUID, name string, isPublic bool, subjectID *uuid.UUID) (*models.Folder, error) {
	path := name
	if parentID != nil {
		parent, err := loadActiveFolder(tx, driveID, *parentID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return nil, errNotFound("parent folder not found")
			}
			return nil, err
		}
		path = parent.ChildPath(name)
	}
	if s.MaxDepth > 0 && pathDepth(path) > s.MaxDepth {
		return nil, errInvalidInput("folder depth limit exceeded")
	}

	taken, err := folderNameTaken(tx, driveID, parentID, name, nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errNameConflict(name)
	}

	folder := models.Folder{
		DriveID:   driveID,
		ParentID:  parentID,
		Name:      name,
		Path:      path,
		IsPublic:  isPublic,
		SubjectID: subjectID,
	}
	if err := tx.Create(&folder).Error; err != nil {
		return nil, errInternal("failed creating folder", err)
	}
	return &folder, nil
}

// List returns the non-deleted folders directly under parentID, or the root
// folders when parentID is nil.
func (s *FolderService) List(ctx context.Context, userID uuid.UUID, parentID *uuid.UUID) ([]models.Folder, error) {
	db := s.DB.WithContext(ctx)
	drive, err := ensureDrive(db, userID, s.DefaultLimit)
	if err != nil {
		return nil, err
	}
	if parentID != nil {
		if _, err := loadActiveFolder(db, drive.ID, *parentID); err != nil {
			return nil, err
		}
	}

	folders := make([]models.Folder, 0)
	q := scopeParent(db.Where("drive_id = ? AND deleted_at IS NULL", drive.ID), "parent_id", parentID)
	if err := q.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, errInternal("failed listing folders", err)
	}
	return folders, nil
}

func (s *FolderService) Get(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	db := s.DB.WithContext(ctx)
	drive, err := findDrive(db, userID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, errNotFound("folder not found")
		}
		return nil, err
	}
	return loadActiveFolder(db, drive.ID, folderID)
}

func (s *FolderService) ResolvePath(ctx context.Context, userID, folderID uuid.UUID) (string, error) {
	folder, err := s.Get(ctx, userID, folderID)
	if err != nil {
		return "", err
	}
	return folder.Path, nil
}

// Ancestors returns the chain from the root down to folderID inclusive.
func (s *FolderService) Ancestors(ctx context.Context, userID, folderID uuid.UUID) (*FolderPath, error) {
	folder, err := s.Get(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	chain := []models.Folder{*folder}
	current := folder.ParentID
	for current != nil && len(chain) <= pathDepth(folder.Path) {
		var parent models.Folder
		if err := db.First(&parent, "id = ? AND drive_id = ?", *current, folder.DriveID).Error; err != nil {
			return nil, errInternal("failed loading ancestor", err)
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return &FolderPath{Path: folder.Path, Ancestors: chain}, nil
}

// Rename changes a folder's name and rewrites the materialized path of its
// whole subtree.
func (s *FolderService) Rename(ctx context.Context, userID, folderID uuid.UUID, newName string) (*models.Folder, error) {
	name, err := utils.SanitizeName(newName)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}

	var folder *models.Folder
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return err
		}
		folder, err = s.renameInTx(tx, drive.ID, folderID, name)
		if err != nil {
			return err
		}
		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionFolderRename,
			TargetType: "folder",
			TargetID:   idPtr(folder.ID),
			TargetName: folder.Name,
			Metadata:   map[string]interface{}{"path": folder.Path},
		})
	})
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, errNotFound("folder not found")
		}
		return nil, wrapInternal("failed renaming folder", err)
	}
	return folder, nil
}

func (s *FolderService) renameInTx(tx *gorm.DB, driveID, folderID uuid.UUID, name string) (*models.Folder, error) {
	folder, err := loadActiveFolder(tx, driveID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.Name == name {
		return folder, nil
	}

	taken, err := folderNameTaken(tx, driveID, folder.ParentID, name, &folder.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errNameConflict(name)
	}

	oldPath := folder.Path
	newPath := name
	if idx := len(oldPath) - len(folder.Name); idx > 0 {
		newPath = oldPath[:idx] + name
	}

	if err := tx.Model(&models.Folder{}).Where("id = ?", folder.ID).Updates(map[string]interface{}{
		"name": name,
		"path": newPath,
	}).Error; err != nil {
		return nil, errInternal("failed renaming folder", err)
	}
	if err := rewriteSubtreePaths(tx, folder.ID, oldPath, newPath); err != nil {
		return nil, err
	}

	folder.Name = name
	folder.Path = newPath
	return folder, nil
}

// CopySubtree deep-copies a folder and its non-deleted descendants inside
// the same drive. Copies share stored bytes with their sources and are not
// billed. The copy is all-or-nothing.
func (s *FolderService) CopySubtree(ctx context.Context, userID, sourceID uuid.UUID, in CopyFolderInput) (*models.Folder, error) {
	start := time.Now()
	var name string
	if in.NewName != nil {
		sanitized, err := utils.SanitizeName(*in.NewName)
		if err != nil {
			return nil, errInvalidInput(err.Error())
		}
		name = sanitized
	}

	var root *models.Folder
	var stats copyStats
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return err
		}

		source, err := loadActiveFolder(tx, drive.ID, sourceID)
		if err != nil {
			return err
		}
		if name == "" {
			name = source.Name
		}

		if in.TargetParentID != nil {
			if _, err := loadActiveFolder(tx, drive.ID, *in.TargetParentID); err != nil {
				if IsKind(err, KindNotFound) {
					return errNotFound("parent folder not found")
				}
				return err
			}
			inside, err := isInSubtree(tx, source.ID, *in.TargetParentID)
			if err != nil {
				return err
			}
			if inside {
				return errInvalidInput("cannot copy a folder into itself")
			}
		}

		c := &treeCopier{
			ctx:      ctx,
			tx:       tx,
			folders:  s,
			dstDrive: drive,
			srcDrive: drive,
		}
		root, err = c.copyFolder(source, in.TargetParentID, name)
		if err != nil {
			return err
		}
		stats = c.stats

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionFolderCopy,
			TargetType: "folder",
			TargetID:   idPtr(root.ID),
			TargetName: root.Name,
			Metadata: map[string]interface{}{
				"source_id": source.ID.String(),
				"folders":   stats.folders,
				"files":     stats.files,
			},
		})
	})
	s.Metrics.ObserveOperation("folder_copy", start, err)
	if err != nil {
		return nil, wrapInternal("failed copying folder", err)
	}

	logger.InfoWithUser(userID.String(), "folder_copied", map[string]interface{}{
		"source_id": sourceID.String(),
		"folder_id": root.ID.String(),
		"folders":   stats.folders,
		"files":     stats.files,
	})
	return root, nil
}
