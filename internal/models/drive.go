package models

import "github.com/google/uuid"

// CopyPolicy controls whether other users may copy content out of a drive.
type CopyPolicy string

const (
	CopyPolicyAllow   CopyPolicy = "ALLOW"
	CopyPolicyRequest CopyPolicy = "REQUEST"
	CopyPolicyDeny    CopyPolicy = "DENY"
)

func (p CopyPolicy) Valid() bool {
	switch p {
	case CopyPolicyAllow, CopyPolicyRequest, CopyPolicyDeny:
		return true
	default:
		return false
	}
}

// Drive is the per-user storage root. StorageUsed is only ever changed through
// the quota ledger.
type Drive struct {
	BaseModel
	OwnerID      uuid.UUID  `json:"ownerID" gorm:"type:char(36);not null;uniqueIndex"`
	StorageUsed  int64      `json:"storageUsed,string" gorm:"not null;default:0"`
	StorageLimit int64      `json:"storageLimit,string" gorm:"not null"`
	IsPrivate    bool       `json:"isPrivate" gorm:"not null;default:false"`
	AllowCopying CopyPolicy `json:"allowCopying" gorm:"type:varchar(10);not null;default:'REQUEST'"`
}

func (Drive) TableName() string {
	return "drives"
}

func (d *Drive) Available() int64 {
	if d.StorageUsed >= d.StorageLimit {
		return 0
	}
	return d.StorageLimit - d.StorageUsed
}
