package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
)

const maxDescriptionLength = 2000

type FileLimits struct {
	DefaultStorageLimit int64
	MaxFileSize         int64
	MaxTags             int
	ThumbnailTimeout    time.Duration
}

type FileService struct {
	DB          *gorm.DB
	Store       storage.ContentStore
	Ledger      *Ledger
	Activity    *ActivityService
	Folders     *FolderService
	Thumbnailer Thumbnailer
	Fetcher     Fetcher
	Metrics     *metrics.Metrics
	Limits      FileLimits
}

func NewFileService(db *gorm.DB, store storage.ContentStore, ledger *Ledger, activity *ActivityService, folders *FolderService, thumbnailer Thumbnailer, fetcher Fetcher, m *metrics.Metrics, limits FileLimits) *FileService {
	return &FileService{
		DB:          db,
		Store:       store,
		Ledger:      ledger,
		Activity:    activity,
		Folders:     folders,
		Thumbnailer: thumbnailer,
		Fetcher:     fetcher,
		Metrics:     m,
		Limits:      limits,
	}
}

type UploadInput struct {
	FolderID     *uuid.UUID
	Data         []byte
	OriginalName string
	MimeType     string
	Tags         []string
	Description  string
	IsPublic     bool
}

type SaveFromURLInput struct {
	URL         string
	Name        string
	FolderID    *uuid.UUID
	Tags        []string
	Description string
	IsPublic    bool
}

type ListFilesInput struct {
	FolderID *uuid.UUID
	Search   string
	FileType string
	Page     int
	Limit    int
}

type UpdateFileInput struct {
	Name        *string
	Tags        *[]string
	Description *string
	IsPublic    *bool
}

type CopyFileInput struct {
	FolderID *uuid.UUID
	NewName  *string
}

type ingestInput struct {
	folderID    *uuid.UUID
	data        []byte
	name        string
	mimeType    string
	tags        models.TagList
	description string
	sourceURL   string
	isPublic    bool
	action      string
}

func (s *FileService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.File, error) {
	start := time.Now()
	file, err := s.upload(ctx, userID, in)
	s.Metrics.ObserveOperation("file_upload", start, err)
	return file, err
}

func (s *FileService) upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.File, error) {
	if s.Limits.MaxFileSize > 0 && int64(len(in.Data)) > s.Limits.MaxFileSize {
		return nil, errInvalidInput("file exceeds the maximum allowed size")
	}
	name, err := utils.SanitizeName(in.OriginalName)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}
	description, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	return s.ingest(ctx, userID, ingestInput{
		folderID:    in.FolderID,
		data:        in.Data,
		name:        name,
		mimeType:    in.MimeType,
		tags:        models.NewTagList(utils.SanitizeTags(in.Tags, s.Limits.MaxTags)),
		description: description,
		isPublic:    in.IsPublic,
		action:      ActionFileUpload,
	})
}

// SaveFromURL fetches remote content into the drive. Identical content
// already present in the drive is reported as a conflict carrying the
// existing file id; nothing is written in that case.
func (s *FileService) SaveFromURL(ctx context.Context, userID uuid.UUID, in SaveFromURLInput) (*models.File, error) {
	start := time.Now()
	file, err := s.saveFromURL(ctx, userID, in)
	s.Metrics.ObserveOperation("file_save_from_url", start, err)
	return file, err
}

func (s *FileService) saveFromURL(ctx context.Context, userID uuid.UUID, in SaveFromURLInput) (*models.File, error) {
	u, err := utils.ValidateFetchURL(in.URL)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}
	if s.Fetcher == nil {
		return nil, errInternal("url fetching is not configured", nil)
	}
	description, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	res, err := s.Fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, wrapInternal("failed fetching url", err)
	}
	if s.Limits.MaxFileSize > 0 && int64(len(res.Data)) > s.Limits.MaxFileSize {
		return nil, errInvalidInput("file exceeds the maximum allowed size")
	}

	rawName := strings.TrimSpace(in.Name)
	if rawName == "" {
		rawName = res.Name
	}
	if rawName == "" {
		rawName = utils.NameFromURL(u)
	}
	name, err := utils.SanitizeName(rawName)
	if err != nil {
		return nil, errInvalidInput(err.Error())
	}

	return s.ingest(ctx, userID, ingestInput{
		folderID:    in.FolderID,
		data:        res.Data,
		name:        name,
		mimeType:    res.ContentType,
		tags:        models.NewTagList(utils.SanitizeTags(in.Tags, s.Limits.MaxTags)),
		description: description,
		sourceURL:   u.String(),
		isPublic:    in.IsPublic,
		action:      ActionFileSaveFromURL,
	})
}

// ingest is the shared write path: pre-checks, content write, thumbnail,
// then ledger commit, row and activity entry in one transaction. Bytes
// written before a failed transaction are removed again.
func (s *FileService) ingest(ctx context.Context, userID uuid.UUID, in ingestInput) (*models.File, error) {
	db := s.DB.WithContext(ctx)
	drive, err := ensureDrive(db, userID, s.Limits.DefaultStorageLimit)
	if err != nil {
		return nil, err
	}
	if in.folderID != nil {
		if _, err := loadActiveFolder(db, drive.ID, *in.folderID); err != nil {
			return nil, err
		}
	}

	size := int64(len(in.data))
	ok, err := s.Ledger.CheckAndReserve(db, drive.ID, size)
	if err != nil {
		return nil, errInternal("failed checking quota", err)
	}
	if !ok {
		s.Metrics.QuotaRejected()
		return nil, errStorageExceeded(drive.StorageUsed, drive.StorageLimit, size)
	}

	hash := storage.Hash(in.data)
	if existing, err := findDuplicate(db, drive.ID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, errDuplicate(existing.ID)
	}

	mimeType := DetectMIME(in.data, in.mimeType)
	obj, err := s.Store.Put(ctx, userID, filepath.Ext(in.name), in.data, mimeType)
	if err != nil {
		return nil, errInternal("failed storing content", err)
	}
	thumbPath := storeThumbnail(ctx, s.Thumbnailer, s.Store, s.Metrics, s.Limits.ThumbnailTimeout, userID, in.data, mimeType)

	file := models.File{
		DriveID:       drive.ID,
		FolderID:      in.folderID,
		OriginalName:  in.name,
		StoredName:    obj.StoredName,
		StoragePath:   obj.Path,
		ThumbnailPath: thumbPath,
		Size:          obj.Size,
		BilledSize:    obj.Size,
		MimeType:      mimeType,
		FileType:      ClassifyFileType(mimeType, in.name),
		Hash:          obj.Hash,
		Tags:          in.tags,
		Description:   in.description,
		SourceURL:     in.sourceURL,
		IsPublic:      in.isPublic,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if in.folderID != nil {
			if _, err := loadActiveFolder(tx, drive.ID, *in.folderID); err != nil {
				return err
			}
		}
		if existing, err := findDuplicate(tx, drive.ID, hash); err != nil {
			return err
		} else if existing != nil {
			return errDuplicate(existing.ID)
		}
		if err := s.Ledger.Commit(tx, drive.ID, file.Size); err != nil {
			return err
		}
		if err := tx.Create(&file).Error; err != nil {
			return errInternal("failed creating file record", err)
		}

		metadata := map[string]interface{}{
			"size":      file.Size,
			"mime_type": file.MimeType,
		}
		if in.sourceURL != "" {
			metadata["source_url"] = in.sourceURL
		}
		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     in.action,
			TargetType: "file",
			TargetID:   idPtr(file.ID),
			TargetName: file.OriginalName,
			Metadata:   metadata,
		})
	})
	if err != nil {
		deleteContent(context.Background(), s.Store, s.Metrics, obj.Path)
		if thumbPath != nil {
			deleteContent(context.Background(), s.Store, s.Metrics, *thumbPath)
		}
		if KindOf(err) == KindInternal {
			logger.ErrorWithUser(userID.String(), "file_ingest_failed", err, map[string]interface{}{
				"drive_id": drive.ID.String(),
				"size":     size,
			})
		}
		return nil, wrapInternal("failed saving file", err)
	}

	logger.InfoWithUser(userID.String(), "file_uploaded", map[string]interface{}{
		"file_id":      file.ID.String(),
		"file_name":    file.OriginalName,
		"file_size":    file.Size,
		"mime_type":    file.MimeType,
		"storage_path": file.StoragePath,
		"action":       in.action,
	})
	return &file, nil
}

func findDuplicate(tx *gorm.DB, driveID uuid.UUID, hash string) (*models.File, error) {
	var existing models.File
	err := tx.Select("id").Where("drive_id = ? AND hash = ? AND deleted_at IS NULL", driveID, hash).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errInternal("failed checking duplicates", err)
	}
	return &existing, nil
}

func cleanDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", errInvalidInput("description is too long")
	}
	return description, nil
}

// List returns non-deleted files of one folder, or of the root when
// FolderID is nil. Search matches name and description case-insensitively.
func (s *FileService) List(ctx context.Context, userID uuid.UUID, in ListFilesInput) ([]models.File, int64, error) {
	db := s.DB.WithContext(ctx)
	drive, err := ensureDrive(db, userID, s.Limits.DefaultStorageLimit)
	if err != nil {
		return nil, 0, err
	}
	if in.FolderID != nil {
		if _, err := loadActiveFolder(db, drive.ID, *in.FolderID); err != nil {
			return nil, 0, err
		}
	}

	q := db.Model(&models.File{}).Where("drive_id = ? AND deleted_at IS NULL", drive.ID)
	q = scopeParent(q, "folder_id", in.FolderID)
	if term := strings.ToLower(strings.TrimSpace(in.Search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where("(LOWER(original_name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	if in.FileType != "" {
		q = q.Where("file_type = ?", in.FileType)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errInternal("failed counting files", err)
	}

	files := make([]models.File, 0)
	p := utils.NewPagination(in.Page, in.Limit)
	if err := utils.ApplyPagination(q.Order("created_at DESC"), p).Find(&files).Error; err != nil {
		return nil, 0, errInternal("failed listing files", err)
	}
	return files, total, nil
}

func escapeLike(term string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(term)
}

func (s *FileService) Get(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	db := s.DB.WithContext(ctx)
	drive, err := findDrive(db, userID)
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, errNotFound("file not found")
		}
		return nil, err
	}
	return loadActiveFile(db, drive.ID, fileID)
}

func (s *FileService) Download(ctx context.Context, userID, fileID uuid.UUID) (*models.File, []byte, error) {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.Store.Get(ctx, file.StoragePath)
	if err != nil {
		logger.ErrorWithUser(userID.String(), "content_read_failed", err, map[string]interface{}{
			"file_id":      file.ID.String(),
			"storage_path": file.StoragePath,
		})
		return nil, nil, errInternal("failed reading file content", err)
	}
	return file, data, nil
}

func (s *FileService) Thumbnail(ctx context.Context, userID, fileID uuid.UUID) ([]byte, error) {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.ThumbnailPath == nil {
		return nil, errNotFound("thumbnail not found")
	}
	data, err := s.Store.Get(ctx, *file.ThumbnailPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errNotFound("thumbnail not found")
		}
		return nil, errInternal("failed reading thumbnail", err)
	}
	return data, nil
}

func (s *FileService) Update(ctx context.Context, userID, fileID uuid.UUID, in UpdateFileInput) (*models.File, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name, err := utils.SanitizeName(*in.Name)
		if err != nil {
			return nil, errInvalidInput(err.Error())
		}
		updates["original_name"] = name
	}
	if in.Tags != nil {
		updates["tags"] = models.NewTagList(utils.SanitizeTags(*in.Tags, s.Limits.MaxTags))
	}
	if in.Description != nil {
		description, err := cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		updates["description"] = description
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}

	var file *models.File
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return err
		}
		file, err = loadActiveFile(tx, drive.ID, fileID)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.File{}).Where("id = ?", file.ID).Updates(updates).Error; err != nil {
			return errInternal("failed updating file", err)
		}
		if err := tx.First(file, "id = ?", file.ID).Error; err != nil {
			return errInternal("failed reloading file", err)
		}

		fields := make([]string, 0, len(updates))
		for k := range updates {
			fields = append(fields, k)
		}
		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionFileUpdate,
			TargetType: "file",
			TargetID:   idPtr(file.ID),
			TargetName: file.OriginalName,
			Metadata:   map[string]interface{}{"fields": fields},
		})
	})
	if err != nil {
		if IsKind(err, KindNotFound) {
			return nil, errNotFound("file not found")
		}
		return nil, wrapInternal("failed updating file", err)
	}
	return file, nil
}

// CopyFile duplicates a file's metadata inside the same drive. The copy
// shares the stored bytes and is not billed.
func (s *FileService) CopyFile(ctx context.Context, userID, fileID uuid.UUID, in CopyFileInput) (*models.File, error) {
	start := time.Now()
	var newName string
	if in.NewName != nil {
		name, err := utils.SanitizeName(*in.NewName)
		if err != nil {
			return nil, errInvalidInput(err.Error())
		}
		newName = name
	}

	var copied *models.File
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		drive, err := findDrive(tx, userID)
		if err != nil {
			return err
		}
		src, err := loadActiveFile(tx, drive.ID, fileID)
		if err != nil {
			return err
		}
		if in.FolderID != nil {
			if _, err := loadActiveFolder(tx, drive.ID, *in.FolderID); err != nil {
				return err
			}
		}
		if newName != "" {
			src.OriginalName = newName
		}

		c := &treeCopier{ctx: ctx, tx: tx, folders: s.Folders, srcDrive: drive, dstDrive: drive}
		copied, err = c.copyFile(src, in.FolderID)
		if err != nil {
			return err
		}

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    drive.ID,
			ActorID:    userID,
			Action:     ActionFileCopy,
			TargetType: "file",
			TargetID:   idPtr(copied.ID),
			TargetName: copied.OriginalName,
			Metadata:   map[string]interface{}{"source_id": fileID.String()},
		})
	})
	s.Metrics.ObserveOperation("file_copy", start, err)
	if err != nil {
		if IsKind(err, KindNotFound) && in.FolderID == nil {
			return nil, errNotFound("file not found")
		}
		return nil, wrapInternal("failed copying file", err)
	}
	return copied, nil
}
