package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
)

type ItemKind string

const (
	ItemFile   ItemKind = "file"
	ItemFolder ItemKind = "folder"
)

func ParseItemKind(raw string) (ItemKind, error) {
	switch ItemKind(raw) {
	case ItemFile, ItemFolder:
		return ItemKind(raw), nil
	default:
		return "", errInvalidInput("kind must be file or folder")
	}
}

type TrashListing struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

type TrashService struct {
	DB       *gorm.DB
	Store    storage.ContentStore
	Ledger   *Ledger
	Activity *ActivityService
	Metrics  *metrics.Metrics
}

func NewTrashService(db *gorm.DB, store storage.ContentStore, ledger *Ledger, activity *ActivityService, m *metrics.Metrics) *TrashService {
	return &TrashService{DB: db, Store: store, Ledger: ledger, Activity: activity, Metrics: m}
}

func trashTimestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SoftDelete moves an item to the trash. Trashing a folder also trashes its
// live descendants, tagged with the folder id so a restore brings back
// exactly what went in with it. Quota is unchanged.
func (s *TrashService) SoftDelete(ctx context.Context, userID uuid.UUID, kind ItemKind, id uuid.UUID) error {
	start := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return notFoundAs(err, kind)
		}
		now := trashTimestamp()

		switch kind {
		case ItemFile:
			file, err := loadActiveFile(tx, drive.ID, id)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.File{}).Where("id = ?", file.ID).Update("deleted_at", now).Error; err != nil {
				return errInternal("failed trashing file", err)
			}
			return s.record(tx, drive.ID, userID, ActionFileDelete, kind, file.ID, file.OriginalName, nil)

		case ItemFolder:
			folder, err := loadActiveFolder(tx, drive.ID, id)
			if err != nil {
				return err
			}
			ids, err := descendantFolderIDs(tx, folder.ID, true)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Folder{}).Where("id = ?", folder.ID).Update("deleted_at", now).Error; err != nil {
				return errInternal("failed trashing folder", err)
			}
			if len(ids) > 1 {
				if err := tx.Model(&models.Folder{}).Where("id IN ?", ids[1:]).Updates(map[string]interface{}{
					"deleted_at":    now,
					"trash_root_id": folder.ID,
				}).Error; err != nil {
					return errInternal("failed trashing subfolders", err)
				}
			}
			result := tx.Model(&models.File{}).Where("folder_id IN ? AND deleted_at IS NULL", ids).Updates(map[string]interface{}{
				"deleted_at":    now,
				"trash_root_id": folder.ID,
			})
			if result.Error != nil {
				return errInternal("failed trashing files", result.Error)
			}
			return s.record(tx, drive.ID, userID, ActionFolderDelete, kind, folder.ID, folder.Name, map[string]interface{}{
				"folders": len(ids),
				"files":   result.RowsAffected,
			})
		}
		return errInvalidInput("kind must be file or folder")
	})
	s.Metrics.ObserveOperation("soft_delete", start, err)
	if err != nil {
		return wrapInternal("failed moving item to trash", err)
	}

	logger.InfoWithUser(userID.String(), "item_trashed", map[string]interface{}{
		"kind": string(kind),
		"id":   id.String(),
	})
	return nil
}

// Restore takes an item out of the trash. Items whose parent folder is still
// trashed or gone are restored to the root.
func (s *TrashService) Restore(ctx context.Context, userID uuid.UUID, kind ItemKind, id uuid.UUID) error {
	start := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return notFoundAs(err, kind)
		}

		switch kind {
		case ItemFile:
			file, err := loadFile(tx, drive.ID, id)
			if err != nil {
				return err
			}
			if !file.IsDeleted() {
				return errInvalidInput("file is not in the trash")
			}
			updates := map[string]interface{}{"deleted_at": nil, "trash_root_id": nil}
			if file.FolderID != nil {
				live, err := folderIsLive(tx, drive.ID, *file.FolderID)
				if err != nil {
					return err
				}
				if !live {
					updates["folder_id"] = nil
				}
			}
			if err := tx.Model(&models.File{}).Where("id = ?", file.ID).Updates(updates).Error; err != nil {
				return errInternal("failed restoring file", err)
			}
			return s.record(tx, drive.ID, userID, ActionFileRestore, kind, file.ID, file.OriginalName, nil)

		case ItemFolder:
			folder, err := loadFolder(tx, drive.ID, id)
			if err != nil {
				return err
			}
			if !folder.IsDeleted() {
				return errInvalidInput("folder is not in the trash")
			}
			return s.restoreFolder(tx, drive.ID, userID, folder)
		}
		return errInvalidInput("kind must be file or folder")
	})
	s.Metrics.ObserveOperation("restore", start, err)
	if err != nil {
		return wrapInternal("failed restoring item", err)
	}

	logger.InfoWithUser(userID.String(), "item_restored", map[string]interface{}{
		"kind": string(kind),
		"id":   id.String(),
	})
	return nil
}

// restoreFolder brings back a folder and every row that went into the trash
// with it. A folder trashed as part of an ancestor shares that ancestor's tag,
// so only its own subtree is searched for rows carrying the tag.
func (s *TrashService) restoreFolder(tx *gorm.DB, driveID, userID uuid.UUID, folder *models.Folder) error {
	tag := folder.ID
	if folder.TrashRootID != nil {
		tag = *folder.TrashRootID
	}

	parentID := folder.ParentID
	newPath := folder.Path
	if parentID != nil {
		live, err := folderIsLive(tx, driveID, *parentID)
		if err != nil {
			return err
		}
		if !live {
			parentID = nil
			newPath = folder.Name
		}
	}

	taken, err := folderNameTaken(tx, driveID, parentID, folder.Name, &folder.ID)
	if err != nil {
		return err
	}
	if taken {
		return errNameConflict(folder.Name)
	}

	ids, err := descendantFolderIDs(tx, folder.ID, false)
	if err != nil {
		return err
	}

	if err := tx.Model(&models.Folder{}).Where("id = ?", folder.ID).Updates(map[string]interface{}{
		"deleted_at":    nil,
		"trash_root_id": nil,
		"parent_id":     parentID,
		"path":          newPath,
	}).Error; err != nil {
		return errInternal("failed restoring folder", err)
	}
	if err := rewriteSubtreePaths(tx, folder.ID, folder.Path, newPath); err != nil {
		return err
	}

	restored := map[string]interface{}{"deleted_at": nil, "trash_root_id": nil}
	for start := 0; start < len(ids); start += 500 {
		end := start + 500
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		if err := tx.Model(&models.Folder{}).
			Where("id IN ? AND id <> ? AND trash_root_id = ?", batch, folder.ID, tag).
			Updates(restored).Error; err != nil {
			return errInternal("failed restoring subfolders", err)
		}
		if err := tx.Model(&models.File{}).
			Where("folder_id IN ? AND trash_root_id = ?", batch, tag).
			Updates(restored).Error; err != nil {
			return errInternal("failed restoring files", err)
		}
	}

	return s.record(tx, driveID, userID, ActionFolderRestore, ItemFolder, folder.ID, folder.Name, map[string]interface{}{
		"path": newPath,
	})
}

func folderIsLive(tx *gorm.DB, driveID, folderID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Model(&models.Folder{}).
		Where("id = ? AND drive_id = ? AND deleted_at IS NULL", folderID, driveID).
		Count(&count).Error; err != nil {
		return false, errInternal("failed checking folder state", err)
	}
	return count > 0, nil
}

// HardDelete permanently removes a trashed item. For a folder every row
// beneath it goes too. Billed bytes are released unless a surviving copy in
// the drive still references them, in which case the charge moves to that
// copy. Content no longer referenced by any row is deleted after commit.
func (s *TrashService) HardDelete(ctx context.Context, userID uuid.UUID, kind ItemKind, id uuid.UUID) error {
	start := time.Now()
	var orphans []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return notFoundAs(err, kind)
		}
		orphans, err = s.purge(tx, drive.ID, userID, kind, id)
		return err
	})
	s.Metrics.ObserveOperation("hard_delete", start, err)
	if err != nil {
		return wrapInternal("failed deleting item", err)
	}

	for _, path := range orphans {
		deleteContent(ctx, s.Store, s.Metrics, path)
	}

	logger.InfoWithUser(userID.String(), "item_purged", map[string]interface{}{
		"kind":           string(kind),
		"id":             id.String(),
		"content_purged": len(orphans),
	})
	return nil
}

func (s *TrashService) purge(tx *gorm.DB, driveID, userID uuid.UUID, kind ItemKind, id uuid.UUID) ([]string, error) {
	switch kind {
	case ItemFile:
		file, err := loadFile(tx, driveID, id)
		if err != nil {
			return nil, err
		}
		if !file.IsDeleted() {
			return nil, errInvalidInput("only items in the trash can be permanently deleted")
		}
		orphans, released, err := s.purgeFiles(tx, driveID, []models.File{*file})
		if err != nil {
			return nil, err
		}
		return orphans, s.record(tx, driveID, userID, ActionFilePurge, kind, file.ID, file.OriginalName, map[string]interface{}{
			"released": released,
		})

	case ItemFolder:
		folder, err := loadFolder(tx, driveID, id)
		if err != nil {
			return nil, err
		}
		if !folder.IsDeleted() {
			return nil, errInvalidInput("only items in the trash can be permanently deleted")
		}

		sub, err := CollectSubtree(tx, folder.ID)
		if err != nil {
			return nil, err
		}
		orphans, released, err := s.purgeFiles(tx, driveID, sub.Files)
		if err != nil {
			return nil, err
		}
		for i := len(sub.FolderIDs) - 1; i >= 0; i-- {
			if err := tx.Where("id = ?", sub.FolderIDs[i]).Delete(&models.Folder{}).Error; err != nil {
				return nil, errInternal("failed deleting folder", err)
			}
		}
		return orphans, s.record(tx, driveID, userID, ActionFolderPurge, kind, folder.ID, folder.Name, map[string]interface{}{
			"folders":  len(sub.FolderIDs),
			"files":    len(sub.Files),
			"bytes":    sub.TotalBytes,
			"released": released,
		})
	}
	return nil, errInvalidInput("kind must be file or folder")
}

// purgeFiles deletes file rows and settles their billing. It returns the
// content paths no longer referenced by any row and the bytes released.
func (s *TrashService) purgeFiles(tx *gorm.DB, driveID uuid.UUID, files []models.File) ([]string, int64, error) {
	if len(files) == 0 {
		return nil, 0, nil
	}

	ids := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	for start := 0; start < len(ids); start += 500 {
		end := start + 500
		if end > len(ids) {
			end = len(ids)
		}
		if err := tx.Where("id IN ?", ids[start:end]).Delete(&models.File{}).Error; err != nil {
			return nil, 0, errInternal("failed deleting files", err)
		}
	}

	var released int64
	for _, f := range files {
		if f.BilledSize <= 0 {
			continue
		}
		var heir models.File
		err := tx.Select("id").
			Where("drive_id = ? AND storage_path = ?", driveID, f.StoragePath).
			Order("created_at ASC").
			Limit(1).
			Find(&heir).Error
		if err != nil {
			return nil, 0, errInternal("failed checking shared content", err)
		}
		if heir.ID != uuid.Nil {
			if err := tx.Model(&models.File{}).Where("id = ?", heir.ID).Update("billed_size", f.BilledSize).Error; err != nil {
				return nil, 0, errInternal("failed transferring billing", err)
			}
			continue
		}
		released += f.BilledSize
	}
	if err := s.Ledger.Release(tx, driveID, released); err != nil {
		return nil, 0, err
	}

	seen := map[string]bool{}
	var orphans []string
	for _, f := range files {
		candidates := []struct {
			path   string
			column string
		}{{f.StoragePath, "storage_path"}}
		if f.ThumbnailPath != nil {
			candidates = append(candidates, struct {
				path   string
				column string
			}{*f.ThumbnailPath, "thumbnail_path"})
		}
		for _, c := range candidates {
			if c.path == "" || seen[c.path] {
				continue
			}
			seen[c.path] = true
			var refs int64
			if err := tx.Model(&models.File{}).Where(c.column+" = ?", c.path).Count(&refs).Error; err != nil {
				return nil, 0, errInternal("failed counting content references", err)
			}
			if refs == 0 {
				orphans = append(orphans, c.path)
			}
		}
	}
	return orphans, released, nil
}

// List returns the top-level trash: items trashed on their own, not the
// descendants that went in with a trashed folder.
func (s *TrashService) List(ctx context.Context, userID uuid.UUID) (*TrashListing, error) {
	db := s.DB.WithContext(ctx)
	listing := &TrashListing{Folders: []models.Folder{}, Files: []models.File{}}

	drive, err := findDrive(db, userID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return listing, nil
		}
		return nil, err
	}

	if err := db.Where("drive_id = ? AND deleted_at IS NOT NULL AND trash_root_id IS NULL", drive.ID).
		Order("deleted_at DESC").Find(&listing.Folders).Error; err != nil {
		return nil, errInternal("failed listing trashed folders", err)
	}
	if err := db.Where("drive_id = ? AND deleted_at IS NOT NULL AND trash_root_id IS NULL", drive.ID).
		Order("deleted_at DESC").Find(&listing.Files).Error; err != nil {
		return nil, errInternal("failed listing trashed files", err)
	}
	return listing, nil
}

// Empty permanently deletes everything in the trash in one transaction.
func (s *TrashService) Empty(ctx context.Context, userID uuid.UUID) (int, error) {
	var orphans []string
	purged := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return nil
			}
			return err
		}

		var folderIDs []uuid.UUID
		if err := tx.Model(&models.Folder{}).
			Where("drive_id = ? AND deleted_at IS NOT NULL AND trash_root_id IS NULL", drive.ID).
			Pluck("id", &folderIDs).Error; err != nil {
			return errInternal("failed listing trash", err)
		}
		for _, id := range folderIDs {
			// An earlier purge in this loop may already have removed a
			// folder nested in another trashed folder.
			if _, err := loadFolder(tx, drive.ID, id); IsKind(err, KindNotFound) {
				continue
			}
			paths, err := s.purge(tx, drive.ID, userID, ItemFolder, id)
			if err != nil {
				return err
			}
			orphans = append(orphans, paths...)
			purged++
		}

		var fileIDs []uuid.UUID
		if err := tx.Model(&models.File{}).
			Where("drive_id = ? AND deleted_at IS NOT NULL", drive.ID).
			Pluck("id", &fileIDs).Error; err != nil {
			return errInternal("failed listing trash", err)
		}
		for _, id := range fileIDs {
			paths, err := s.purge(tx, drive.ID, userID, ItemFile, id)
			if err != nil {
				return err
			}
			orphans = append(orphans, paths...)
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, wrapInternal("failed emptying trash", err)
	}

	for _, path := range orphans {
		deleteContent(ctx, s.Store, s.Metrics, path)
	}
	return purged, nil
}

func (s *TrashService) record(tx *gorm.DB, driveID, userID uuid.UUID, action string, kind ItemKind, id uuid.UUID, name string, metadata map[string]interface{}) error {
	return s.Activity.Record(tx, ActivityEntry{
		DriveID:    driveID,
		ActorID:    userID,
		Action:     action,
		TargetType: string(kind),
		TargetID:   idPtr(id),
		TargetName: name,
		Metadata:   metadata,
	})
}

// notFoundAs turns a missing drive into a missing item: a user without a
// drive cannot own the item either.
func notFoundAs(err error, kind ItemKind) error {
	if IsKind(err, KindNotFound) {
		return errNotFound(string(kind) + " not found")
	}
	return err
}
