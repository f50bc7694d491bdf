package models

import (
	"time"

	"github.com/google/uuid"
)

// SubjectFolderPrefix marks folders provisioned for a subject.
const SubjectFolderPrefix = "Subjects - "

type Folder struct {
	BaseModel
	DriveID   uuid.UUID  `json:"driveID" gorm:"type:char(36);not null;index:idx_folders_drive_parent"`
	ParentID  *uuid.UUID `json:"parentID,omitempty" gorm:"type:char(36);index:idx_folders_drive_parent"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	Path      string     `json:"path" gorm:"type:text;not null"`
	IsPublic  bool       `json:"isPublic" gorm:"not null;default:false"`
	SubjectID *uuid.UUID `json:"subjectID,omitempty" gorm:"type:char(36);index"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
	// TrashRootID is the trashed ancestor folder this row was trashed with.
	// It is nil for live rows and for rows trashed on their own.
	TrashRootID *uuid.UUID `json:"-" gorm:"type:char(36);index"`
}

func (Folder) TableName() string {
	return "folders"
}

func (f *Folder) IsDeleted() bool {
	return f.DeletedAt != nil
}

// ChildPath returns the materialized path of a child named name.
func (f *Folder) ChildPath(name string) string {
	return f.Path + "/" + name
}
