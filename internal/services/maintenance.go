package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
)

type ReconcileResult struct {
	DriveID uuid.UUID `json:"driveID"`
	OwnerID uuid.UUID `json:"ownerID"`
	Before  int64     `json:"before,string"`
	After   int64     `json:"after,string"`
}

func (r ReconcileResult) Changed() bool {
	return r.Before != r.After
}

type VerifyIssue struct {
	FileID  uuid.UUID `json:"fileID"`
	Path    string    `json:"path"`
	Problem string    `json:"problem"`
}

// MaintenanceService holds operator tasks that repair or audit the ledger
// and the content store.
type MaintenanceService struct {
	DB     *gorm.DB
	Store  storage.ContentStore
	Ledger *Ledger
}

func NewMaintenanceService(db *gorm.DB, store storage.ContentStore, ledger *Ledger) *MaintenanceService {
	return &MaintenanceService{DB: db, Store: store, Ledger: ledger}
}

// Reconcile recomputes StorageUsed from the billed size of every file row.
// With ownerID nil every drive is reconciled. dryRun reports without
// writing.
func (s *MaintenanceService) Reconcile(ctx context.Context, ownerID *uuid.UUID, dryRun bool) ([]ReconcileResult, error) {
	db := s.DB.WithContext(ctx)
	q := db.Model(&models.Drive{}).Order("created_at ASC")
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var drives []models.Drive
	if err := q.Find(&drives).Error; err != nil {
		return nil, errInternal("failed listing drives", err)
	}
	if ownerID != nil && len(drives) == 0 {
		return nil, errNotFound("drive not found")
	}

	results := make([]ReconcileResult, 0, len(drives))
	for _, drive := range drives {
		var result ReconcileResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var billed int64
			if err := tx.Model(&models.File{}).
				Where("drive_id = ?", drive.ID).
				Select("COALESCE(SUM(billed_size), 0)").
				Scan(&billed).Error; err != nil {
				return errInternal("failed summing billed bytes", err)
			}
			var current models.Drive
			if err := tx.First(&current, "id = ?", drive.ID).Error; err != nil {
				return errInternal("failed loading drive", err)
			}
			result = ReconcileResult{DriveID: drive.ID, OwnerID: drive.OwnerID, Before: current.StorageUsed, After: billed}
			if dryRun || !result.Changed() {
				return nil
			}
			if err := s.Ledger.Set(tx, drive.ID, billed); err != nil {
				return errInternal("failed updating storage usage", err)
			}
			return nil
		})
		if err != nil {
			return results, err
		}
		if result.Changed() {
			logger.Warn("quota_reconciled", map[string]interface{}{
				"drive_id": drive.ID.String(),
				"before":   result.Before,
				"after":    result.After,
				"dry_run":  dryRun,
			})
		}
		results = append(results, result)
	}
	return results, nil
}

// Verify reads back the content of every file row of the owner's drive and
// compares size and hash with the metadata.
func (s *MaintenanceService) Verify(ctx context.Context, ownerID uuid.UUID) ([]VerifyIssue, int, error) {
	db := s.DB.WithContext(ctx)
	drive, err := findDrive(db, ownerID)
	if err != nil {
		return nil, 0, err
	}

	var files []models.File
	if err := db.Where("drive_id = ?", drive.ID).Order("created_at ASC").Find(&files).Error; err != nil {
		return nil, 0, errInternal("failed listing files", err)
	}

	issues := make([]VerifyIssue, 0)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return issues, len(files), err
		}
		data, err := s.Store.Get(ctx, f.StoragePath)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			issues = append(issues, VerifyIssue{FileID: f.ID, Path: f.StoragePath, Problem: "missing"})
		case err != nil:
			issues = append(issues, VerifyIssue{FileID: f.ID, Path: f.StoragePath, Problem: "unreadable: " + err.Error()})
		case int64(len(data)) != f.Size:
			issues = append(issues, VerifyIssue{FileID: f.ID, Path: f.StoragePath, Problem: "size mismatch"})
		case storage.Hash(data) != f.Hash:
			issues = append(issues, VerifyIssue{FileID: f.ID, Path: f.StoragePath, Problem: "hash mismatch"})
		}
	}
	return issues, len(files), nil
}
