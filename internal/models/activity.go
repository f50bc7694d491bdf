package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLogEntry is an append-only record of a drive mutation. Rows are
// written inside the same transaction as the change they describe.
type ActivityLogEntry struct {
	ID         uuid.UUID              `json:"id" gorm:"type:char(36);primaryKey"`
	DriveID    uuid.UUID              `json:"driveID" gorm:"type:char(36);not null;index"`
	ActorID    uuid.UUID              `json:"actorID" gorm:"type:char(36);not null;index"`
	Action     string                 `json:"action" gorm:"type:varchar(50);not null;index"`
	TargetType string                 `json:"targetType" gorm:"type:varchar(30);not null"`
	TargetID   *uuid.UUID             `json:"targetID,omitempty" gorm:"type:char(36);index"`
	TargetName string                 `json:"targetName" gorm:"type:varchar(255);not null"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt  time.Time              `json:"createdAt" gorm:"not null;index"`
}

func (a *ActivityLogEntry) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (ActivityLogEntry) TableName() string {
	return "activity_log_entries"
}
