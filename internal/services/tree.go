package services

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
	"gorm.io/gorm"
)

// Subtree is everything beneath (and including) a folder. FolderIDs is in
// depth-first preorder, so parents precede children.
type Subtree struct {
	FolderIDs  []uuid.UUID
	Files      []models.File
	TotalBytes int64
}

func scopeParent(q *gorm.DB, column string, parentID *uuid.UUID) *gorm.DB {
	if parentID == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *parentID)
}

func loadFolder(tx *gorm.DB, driveID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	if err := tx.First(&folder, "id = ? AND drive_id = ?", folderID, driveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("folder not found")
		}
		return nil, errInternal("failed loading folder", err)
	}
	return &folder, nil
}

// loadActiveFolder is loadFolder restricted to folders that are not in the
// trash.
func loadActiveFolder(tx *gorm.DB, driveID, folderID uuid.UUID) (*models.Folder, error) {
	folder, err := loadFolder(tx, driveID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.IsDeleted() {
		return nil, errNotFound("folder not found")
	}
	return folder, nil
}

func loadFile(tx *gorm.DB, driveID, fileID uuid.UUID) (*models.File, error) {
	var file models.File
	if err := tx.First(&file, "id = ? AND drive_id = ?", fileID, driveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("file not found")
		}
		return nil, errInternal("failed loading file", err)
	}
	return &file, nil
}

func loadActiveFile(tx *gorm.DB, driveID, fileID uuid.UUID) (*models.File, error) {
	file, err := loadFile(tx, driveID, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted() {
		return nil, errNotFound("file not found")
	}
	return file, nil
}

// folderNameTaken reports whether a live sibling already uses name. It locks
// the drive first, so the answer holds until the caller's transaction ends.
func folderNameTaken(tx *gorm.DB, driveID uuid.UUID, parentID *uuid.UUID, name string, exclude *uuid.UUID) (bool, error) {
	if err := lockDrive(tx, driveID); err != nil {
		return false, err
	}
	q := tx.Model(&models.Folder{}).Where("drive_id = ? AND name = ? AND deleted_at IS NULL", driveID, name)
	q = scopeParent(q, "parent_id", parentID)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, errInternal("failed checking folder name", err)
	}
	return count > 0, nil
}

// pathDepth counts the segments of a materialized path. Names never contain
// a slash, so the count is exact.
func pathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, "/") + 1
}

// childFolderIDs lists the direct children of parentID.
func childFolderIDs(tx *gorm.DB, parentID uuid.UUID, activeOnly bool) ([]uuid.UUID, error) {
	q := tx.Model(&models.Folder{}).Where("parent_id = ?", parentID)
	if activeOnly {
		q = q.Where("deleted_at IS NULL")
	}
	var ids []uuid.UUID
	if err := q.Order("name ASC").Pluck("id", &ids).Error; err != nil {
		return nil, errInternal("failed listing child folders", err)
	}
	return ids, nil
}

// descendantFolderIDs walks the tree depth first and returns rootID followed
// by every folder beneath it in preorder.
func descendantFolderIDs(tx *gorm.DB, rootID uuid.UUID, activeOnly bool) ([]uuid.UUID, error) {
	var all []uuid.UUID
	seen := map[uuid.UUID]bool{rootID: true}
	stack := []uuid.UUID{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		all = append(all, id)

		children, err := childFolderIDs(tx, id, activeOnly)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			if seen[children[i]] {
				continue
			}
			seen[children[i]] = true
			stack = append(stack, children[i])
		}
	}
	return all, nil
}

// CollectSubtree gathers every folder and file beneath folderID regardless of
// their own trash state, with the summed byte size of the files.
func CollectSubtree(tx *gorm.DB, folderID uuid.UUID) (*Subtree, error) {
	ids, err := descendantFolderIDs(tx, folderID, false)
	if err != nil {
		return nil, err
	}

	sub := &Subtree{FolderIDs: ids}
	for start := 0; start < len(ids); start += 500 {
		end := start + 500
		if end > len(ids) {
			end = len(ids)
		}
		var files []models.File
		if err := tx.Where("folder_id IN ?", ids[start:end]).Find(&files).Error; err != nil {
			return nil, errInternal("failed collecting files", err)
		}
		sub.Files = append(sub.Files, files...)
	}
	for _, f := range sub.Files {
		sub.TotalBytes += f.Size
	}
	return sub, nil
}

// rewriteSubtreePaths replaces the oldPath prefix of every descendant of
// rootID with newPath. rootID itself must already carry newPath.
func rewriteSubtreePaths(tx *gorm.DB, rootID uuid.UUID, oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	ids, err := descendantFolderIDs(tx, rootID, false)
	if err != nil {
		return err
	}
	if len(ids) <= 1 {
		return nil
	}

	var folders []models.Folder
	if err := tx.Select("id", "path").Where("id IN ?", ids[1:]).Find(&folders).Error; err != nil {
		return errInternal("failed loading subtree", err)
	}
	for _, f := range folders {
		if !strings.HasPrefix(f.Path, oldPath+"/") {
			continue
		}
		updated := newPath + strings.TrimPrefix(f.Path, oldPath)
		if err := tx.Model(&models.Folder{}).Where("id = ?", f.ID).Update("path", updated).Error; err != nil {
			return errInternal("failed rewriting folder path", err)
		}
	}
	return nil
}

// isInSubtree reports whether candidate is rootID or one of its descendants,
// by walking candidate's ancestor chain up to a root folder.
func isInSubtree(tx *gorm.DB, rootID, candidate uuid.UUID) (bool, error) {
	visited := map[uuid.UUID]bool{}
	for current := &candidate; current != nil; {
		if *current == rootID {
			return true, nil
		}
		if visited[*current] {
			return false, errInternal("folder ancestry contains a cycle", nil)
		}
		visited[*current] = true

		var f models.Folder
		if err := tx.Select("id", "parent_id").First(&f, "id = ?", *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, errInternal("failed loading folder", err)
		}
		current = f.ParentID
	}
	return false, nil
}
