package services

import (
	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/pkg/logger"
	"gorm.io/gorm"
)

// Ledger is the only writer of Drive.StorageUsed. Every method runs on the
// caller's transaction so the usage change commits together with the metadata
// that justifies it.
type Ledger struct {
	Metrics *metrics.Metrics
}

func NewLedger(m *metrics.Metrics) *Ledger {
	return &Ledger{Metrics: m}
}

// CheckAndReserve reports whether delta more bytes fit in the drive. It does
// not mutate anything; Commit re-checks atomically.
func (l *Ledger) CheckAndReserve(tx *gorm.DB, driveID uuid.UUID, delta int64) (bool, error) {
	var drive models.Drive
	if err := tx.Select("id", "storage_used", "storage_limit").First(&drive, "id = ?", driveID).Error; err != nil {
		return false, err
	}
	return drive.StorageUsed+delta <= drive.StorageLimit, nil
}

// Commit adds delta to the drive usage. The conditional update is the
// serialization point for concurrent writers: it only succeeds while the new
// total stays within the limit.
func (l *Ledger) Commit(tx *gorm.DB, driveID uuid.UUID, delta int64) error {
	if delta < 0 {
		return errInvalidInput("quota commit must not be negative")
	}
	if delta == 0 {
		return nil
	}

	result := tx.Model(&models.Drive{}).
		Where("id = ? AND storage_used + ? <= storage_limit", driveID, delta).
		Update("storage_used", gorm.Expr("storage_used + ?", delta))
	if result.Error != nil {
		return errInternal("failed updating storage usage", result.Error)
	}
	if result.RowsAffected == 0 {
		var drive models.Drive
		if err := tx.First(&drive, "id = ?", driveID).Error; err != nil {
			return wrapInternal("failed loading drive", err)
		}
		l.Metrics.QuotaRejected()
		return errStorageExceeded(drive.StorageUsed, drive.StorageLimit, delta)
	}

	l.Metrics.BytesStored(delta)
	return nil
}

// Release subtracts delta from the drive usage, clamping at zero. A clamp
// means the ledger and the file rows disagree and is logged as such.
func (l *Ledger) Release(tx *gorm.DB, driveID uuid.UUID, delta int64) error {
	if delta <= 0 {
		return nil
	}

	var drive models.Drive
	if err := tx.Select("id", "storage_used").First(&drive, "id = ?", driveID).Error; err != nil {
		return wrapInternal("failed loading drive", err)
	}

	result := tx.Model(&models.Drive{}).
		Where("id = ? AND storage_used >= ?", driveID, delta).
		Update("storage_used", gorm.Expr("storage_used - ?", delta))
	if result.Error != nil {
		return errInternal("failed updating storage usage", result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Warn("quota_release_clamped", map[string]interface{}{
			"drive_id":  driveID.String(),
			"requested": delta,
			"used":      drive.StorageUsed,
		})
		l.Metrics.QuotaReleaseClamped()
		if err := tx.Model(&models.Drive{}).Where("id = ?", driveID).Update("storage_used", 0).Error; err != nil {
			return errInternal("failed updating storage usage", err)
		}
		return nil
	}

	l.Metrics.BytesReleased(delta)
	return nil
}

// Set overwrites usage. Only the maintenance reconciler uses it.
func (l *Ledger) Set(tx *gorm.DB, driveID uuid.UUID, used int64) error {
	return tx.Model(&models.Drive{}).Where("id = ?", driveID).Update("storage_used", used).Error
}
