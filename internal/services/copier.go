package services

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
)

type copyStats struct {
	folders int
	files   int
	bytes   int64
}

// treeCopier copies folders and files into dstDrive on one transaction.
// Inside one drive the copies reference the source bytes. Across drives the
// bytes are duplicated and billed to the receiving drive; paths written so
// far are kept in written so a failed transaction can remove them.
type treeCopier struct {
	ctx      context.Context
	tx       *gorm.DB
	folders  *FolderService
	srcDrive *models.Drive
	dstDrive *models.Drive
	written  []string
	stats    copyStats
}

func (c *treeCopier) crossDrive() bool {
	return c.srcDrive.ID != c.dstDrive.ID
}

func (c *treeCopier) copyFolder(source *models.Folder, dstParentID *uuid.UUID, name string) (*models.Folder, error) {
	if c.crossDrive() {
		if err := c.precheckFolder(source.ID); err != nil {
			return nil, err
		}
	}

	root, err := c.folders.createInTx(c.tx, c.dstDrive.ID, dstParentID, name, c.keepPublic(source.IsPublic), nil)
	if err != nil {
		return nil, err
	}
	c.stats.folders++

	type pair struct{ src, dst uuid.UUID }
	stack := []pair{{src: source.ID, dst: root.ID}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var files []models.File
		if err := c.tx.Where("folder_id = ? AND deleted_at IS NULL", p.src).Order("created_at ASC").Find(&files).Error; err != nil {
			return nil, errInternal("failed listing files to copy", err)
		}
		dst := p.dst
		for i := range files {
			if _, err := c.copyFile(&files[i], &dst); err != nil {
				return nil, err
			}
		}

		var children []models.Folder
		if err := c.tx.Where("parent_id = ? AND deleted_at IS NULL", p.src).Order("name ASC").Find(&children).Error; err != nil {
			return nil, errInternal("failed listing folders to copy", err)
		}
		for _, child := range children {
			created, err := c.folders.createInTx(c.tx, c.dstDrive.ID, &dst, child.Name, c.keepPublic(child.IsPublic), nil)
			if err != nil {
				return nil, err
			}
			c.stats.folders++
			stack = append(stack, pair{src: child.ID, dst: created.ID})
		}
	}

	return root, nil
}

// precheckFolder rejects a cross-drive copy up front when the whole subtree
// cannot fit. Commit re-checks file by file.
func (c *treeCopier) precheckFolder(sourceID uuid.UUID) error {
	ids, err := descendantFolderIDs(c.tx, sourceID, true)
	if err != nil {
		return err
	}
	var total int64
	if err := c.tx.Model(&models.File{}).
		Where("folder_id IN ? AND deleted_at IS NULL", ids).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error; err != nil {
		return errInternal("failed sizing copy", err)
	}
	return c.precheckBytes(total)
}

func (c *treeCopier) precheckBytes(n int64) error {
	ok, err := c.folders.Ledger.CheckAndReserve(c.tx, c.dstDrive.ID, n)
	if err != nil {
		return wrapInternal("failed checking quota", err)
	}
	if !ok {
		var drive models.Drive
		if err := c.tx.First(&drive, "id = ?", c.dstDrive.ID).Error; err != nil {
			return errInternal("failed loading drive", err)
		}
		c.folders.Metrics.QuotaRejected()
		return errStorageExceeded(drive.StorageUsed, drive.StorageLimit, n)
	}
	return nil
}

func (c *treeCopier) keepPublic(isPublic bool) bool {
	return isPublic && !c.crossDrive()
}

func (c *treeCopier) copyFile(src *models.File, folderID *uuid.UUID) (*models.File, error) {
	dup := models.File{
		DriveID:       c.dstDrive.ID,
		FolderID:      folderID,
		OriginalName:  src.OriginalName,
		StoredName:    src.StoredName,
		StoragePath:   src.StoragePath,
		ThumbnailPath: src.ThumbnailPath,
		Size:          src.Size,
		MimeType:      src.MimeType,
		FileType:      src.FileType,
		Hash:          src.Hash,
		Tags:          models.NewTagList(src.Tags),
		Description:   src.Description,
		SourceURL:     src.SourceURL,
		IsPublic:      c.keepPublic(src.IsPublic),
	}

	if c.crossDrive() {
		if err := c.duplicateBytes(src, &dup); err != nil {
			return nil, err
		}
	}

	if err := c.tx.Create(&dup).Error; err != nil {
		return nil, errInternal("failed creating file copy", err)
	}
	c.stats.files++
	c.stats.bytes += dup.BilledSize
	return &dup, nil
}

func (c *treeCopier) duplicateBytes(src *models.File, dup *models.File) error {
	store := c.folders.Store
	data, err := store.Get(c.ctx, src.StoragePath)
	if err != nil {
		return errInternal("failed reading source content", err)
	}
	if int64(len(data)) != src.Size {
		return errInternal("source content size mismatch", nil)
	}

	obj, err := store.Put(c.ctx, c.dstDrive.OwnerID, filepath.Ext(src.StoredName), data, src.MimeType)
	if err != nil {
		return errInternal("failed writing copied content", err)
	}
	c.written = append(c.written, obj.Path)

	if err := c.folders.Ledger.Commit(c.tx, c.dstDrive.ID, obj.Size); err != nil {
		return err
	}
	dup.StoredName = obj.StoredName
	dup.StoragePath = obj.Path
	dup.BilledSize = obj.Size
	dup.ThumbnailPath = nil

	if src.ThumbnailPath != nil {
		thumb, err := store.Get(c.ctx, *src.ThumbnailPath)
		if err == nil {
			var tobj storage.Object
			tobj, err = store.Put(c.ctx, c.dstDrive.OwnerID, ".jpg", thumb, "image/jpeg")
			if err == nil {
				c.written = append(c.written, tobj.Path)
				dup.ThumbnailPath = &tobj.Path
			}
		}
		if err != nil {
			logger.Warn("thumbnail_copy_failed", map[string]interface{}{
				"file_id": src.ID.String(),
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// discard removes content written by a copy whose transaction failed.
func (c *treeCopier) discard() {
	for _, path := range c.written {
		deleteContent(context.Background(), c.folders.Store, c.folders.Metrics, path)
	}
	c.written = nil
}

// deleteContent removes stored bytes. Failures leave orphaned bytes behind,
// which is logged and counted but never returned.
func deleteContent(ctx context.Context, store storage.ContentStore, m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := store.Delete(ctx, path); err != nil && err != storage.ErrNotFound {
		logger.Error("content_delete_failed", err, map[string]interface{}{
			"storage_path": path,
		})
		m.ContentDeleteFailed()
	}
}
