package models

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	BaseModel
	DriveID       uuid.UUID  `json:"driveID" gorm:"type:char(36);not null;index:idx_files_drive_folder"`
	FolderID      *uuid.UUID `json:"folderID,omitempty" gorm:"type:char(36);index:idx_files_drive_folder"`
	OriginalName  string     `json:"originalName" gorm:"type:varchar(255);not null"`
	StoredName    string     `json:"storedName" gorm:"type:varchar(255);not null"`
	StoragePath   string     `json:"-" gorm:"type:text;not null;index"`
	ThumbnailPath *string    `json:"thumbnailPath,omitempty" gorm:"type:text"`
	Size          int64      `json:"size,string" gorm:"not null;default:0"`
	// BilledSize is what this row contributes to the drive's StorageUsed.
	// Same-drive copies share bytes with their source and carry zero.
	BilledSize  int64      `json:"billedSize,string" gorm:"not null;default:0"`
	MimeType    string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	FileType    string     `json:"fileType" gorm:"type:varchar(20);not null"`
	Hash        string     `json:"hash" gorm:"type:varchar(64);not null;index"`
	Tags        TagList    `json:"tags" gorm:"type:text"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	SourceURL   string     `json:"sourceURL,omitempty" gorm:"type:text"`
	IsPublic    bool       `json:"isPublic" gorm:"not null;default:false"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" gorm:"index"`
	// TrashRootID is the trashed ancestor folder this row was trashed with.
	// It is nil for live rows and for rows trashed on their own.
	TrashRootID *uuid.UUID `json:"-" gorm:"type:char(36);index"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) IsDeleted() bool {
	return f.DeletedAt != nil
}
