package models

import (
	"time"

	"github.com/google/uuid"
)

type CopyRequestType string

const (
	CopyRequestTypeSubject CopyRequestType = "subject"
	CopyRequestTypeFile    CopyRequestType = "file"
	CopyRequestTypeFolder  CopyRequestType = "folder"
)

func (t CopyRequestType) Valid() bool {
	switch t {
	case CopyRequestTypeSubject, CopyRequestTypeFile, CopyRequestTypeFolder:
		return true
	default:
		return false
	}
}

type CopyRequestStatus string

const (
	CopyRequestPending  CopyRequestStatus = "PENDING"
	CopyRequestApproved CopyRequestStatus = "APPROVED"
	CopyRequestDenied   CopyRequestStatus = "DENIED"
)

type CopyRequest struct {
	BaseModel
	FromUserID  uuid.UUID         `json:"fromUserID" gorm:"type:char(36);not null;index:idx_copy_requests_tuple"`
	ToUserID    uuid.UUID         `json:"toUserID" gorm:"type:char(36);not null;index:idx_copy_requests_tuple;index"`
	FromDriveID uuid.UUID         `json:"fromDriveID" gorm:"type:char(36);not null"`
	ToDriveID   uuid.UUID         `json:"toDriveID" gorm:"type:char(36);not null"`
	RequestType CopyRequestType   `json:"requestType" gorm:"type:varchar(10);not null;index:idx_copy_requests_tuple"`
	TargetID    uuid.UUID         `json:"targetID" gorm:"type:char(36);not null;index:idx_copy_requests_tuple"`
	TargetName  string            `json:"targetName" gorm:"type:varchar(255);not null"`
	Status      CopyRequestStatus `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index"`
	Message     *string           `json:"message,omitempty" gorm:"type:text"`
	ResolvedAt  *time.Time        `json:"resolvedAt,omitempty"`
	ResultID    *uuid.UUID        `json:"resultID,omitempty" gorm:"type:char(36)"`
}

func (CopyRequest) TableName() string {
	return "copy_requests"
}

func (r *CopyRequest) IsPending() bool {
	return r.Status == CopyRequestPending
}
