package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/models"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
	"gorm.io/gorm"
)

const maxRequestMessageLength = 500

type CopyRequestService struct {
	DB           *gorm.DB
	Folders      *FolderService
	Activity     *ActivityService
	Metrics      *metrics.Metrics
	DefaultLimit int64
}

func NewCopyRequestService(db *gorm.DB, folders *FolderService, activity *ActivityService, m *metrics.Metrics, defaultLimit int64) *CopyRequestService {
	return &CopyRequestService{DB: db, Folders: folders, Activity: activity, Metrics: m, DefaultLimit: defaultLimit}
}

type CreateCopyRequestInput struct {
	ToUserID uuid.UUID
	Type     models.CopyRequestType
	TargetID uuid.UUID
	Message  *string
}

type ListCopyRequestsInput struct {
	Incoming bool
	Status   *models.CopyRequestStatus
	Page     int
	Limit    int
}

type CopyResult struct {
	Type     models.CopyRequestType `json:"type"`
	ResultID uuid.UUID              `json:"resultId"`
	Name     string                 `json:"name"`
	Bytes    int64                  `json:"bytes,string"`
}

// copyTarget is the owner-side object a request or direct copy refers to.
type copyTarget struct {
	name     string
	isPublic bool
	file     *models.File
	folder   *models.Folder
}

func (s *CopyRequestService) Create(ctx context.Context, fromUserID uuid.UUID, in CreateCopyRequestInput) (*models.CopyRequest, error) {
	if !in.Type.Valid() {
		return nil, errInvalidInput("type must be subject, file or folder")
	}
	if fromUserID == in.ToUserID {
		return nil, errInvalidInput("cannot request a copy from yourself")
	}
	var message *string
	if in.Message != nil {
		trimmed := strings.TrimSpace(*in.Message)
		if utf8.RuneCountInString(trimmed) > maxRequestMessageLength {
			return nil, errInvalidInput("message is too long")
		}
		if trimmed != "" {
			message = &trimmed
		}
	}

	var req *models.CopyRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerDrive, err := findDrive(tx, in.ToUserID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return errNotFound(string(in.Type) + " not found")
			}
			return err
		}
		if ownerDrive.AllowCopying == models.CopyPolicyDeny {
			return errForbidden("the owner does not allow copying from this drive")
		}

		target, err := resolveCopyTarget(tx, ownerDrive, in.Type, in.TargetID)
		if err != nil {
			return err
		}
		if ownerDrive.AllowCopying == models.CopyPolicyAllow && target.isPublic {
			return errInvalidInput("this item is public; copy it directly instead")
		}

		requesterDrive, err := ensureDrive(tx, fromUserID, s.DefaultLimit)
		if err != nil {
			return err
		}
		if err := lockDrive(tx, requesterDrive.ID); err != nil {
			return err
		}

		var existing models.CopyRequest
		err = tx.Select("id").Where(
			"from_user_id = ? AND to_user_id = ? AND request_type = ? AND target_id = ? AND status = ?",
			fromUserID, in.ToUserID, in.Type, in.TargetID, models.CopyRequestPending,
		).First(&existing).Error
		if err == nil {
			return errConflict("a pending request for this item already exists", map[string]interface{}{
				"existingId": existing.ID.String(),
			})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errInternal("failed checking pending requests", err)
		}

		req = &models.CopyRequest{
			FromUserID:  fromUserID,
			ToUserID:    in.ToUserID,
			FromDriveID: requesterDrive.ID,
			ToDriveID:   ownerDrive.ID,
			RequestType: in.Type,
			TargetID:    in.TargetID,
			TargetName:  target.name,
			Status:      models.CopyRequestPending,
			Message:     message,
		}
		if err := tx.Create(req).Error; err != nil {
			return errInternal("failed creating copy request", err)
		}

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    requesterDrive.ID,
			ActorID:    fromUserID,
			Action:     ActionCopyRequestCreate,
			TargetType: string(in.Type),
			TargetID:   idPtr(in.TargetID),
			TargetName: target.name,
			Metadata: map[string]interface{}{
				"request_id": req.ID.String(),
				"owner_id":   in.ToUserID.String(),
			},
		})
	})
	if err != nil {
		return nil, wrapInternal("failed creating copy request", err)
	}

	logger.InfoWithUser(fromUserID.String(), "copy_request_created", map[string]interface{}{
		"request_id": req.ID.String(),
		"owner_id":   in.ToUserID.String(),
		"type":       string(in.Type),
		"target_id":  in.TargetID.String(),
	})
	return req, nil
}

func resolveCopyTarget(tx *gorm.DB, ownerDrive *models.Drive, kind models.CopyRequestType, targetID uuid.UUID) (*copyTarget, error) {
	switch kind {
	case models.CopyRequestTypeFile:
		file, err := loadActiveFile(tx, ownerDrive.ID, targetID)
		if err != nil {
			return nil, err
		}
		return &copyTarget{name: file.OriginalName, isPublic: file.IsPublic, file: file}, nil

	case models.CopyRequestTypeFolder:
		folder, err := loadActiveFolder(tx, ownerDrive.ID, targetID)
		if err != nil {
			return nil, err
		}
		return &copyTarget{name: folder.Name, isPublic: folder.IsPublic, folder: folder}, nil

	case models.CopyRequestTypeSubject:
		var folder models.Folder
		err := tx.Where("drive_id = ? AND subject_id = ? AND deleted_at IS NULL", ownerDrive.ID, targetID).First(&folder).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errNotFound("subject not found")
			}
			return nil, errInternal("failed loading subject folder", err)
		}
		return &copyTarget{name: folder.Name, isPublic: folder.IsPublic, folder: &folder}, nil
	}
	return nil, errInvalidInput("type must be subject, file or folder")
}

// Approve resolves a pending request and copies the target into the
// requester's drive in the same transaction. The requester is billed for
// the duplicated bytes.
func (s *CopyRequestService) Approve(ctx context.Context, ownerID, requestID uuid.UUID) (*models.CopyRequest, error) {
	start := time.Now()
	var req models.CopyRequest
	var copier *treeCopier
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwnedPending(tx, ownerID, requestID, &req); err != nil {
			return err
		}

		ownerDrive, err := findDrive(tx, ownerID)
		if err != nil {
			return err
		}
		target, err := resolveCopyTarget(tx, ownerDrive, req.RequestType, req.TargetID)
		if err != nil {
			return err
		}
		receiver, err := ensureDrive(tx, req.FromUserID, s.DefaultLimit)
		if err != nil {
			return err
		}

		copier = &treeCopier{ctx: ctx, tx: tx, folders: s.Folders, srcDrive: ownerDrive, dstDrive: receiver}
		result, err := s.copyInto(copier, req.RequestType, target)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		update := tx.Model(&models.CopyRequest{}).
			Where("id = ? AND status = ?", req.ID, models.CopyRequestPending).
			Updates(map[string]interface{}{
				"status":      models.CopyRequestApproved,
				"resolved_at": now,
				"result_id":   result.ResultID,
			})
		if update.Error != nil {
			return errInternal("failed resolving copy request", update.Error)
		}
		if update.RowsAffected == 0 {
			return errConflict("request has already been resolved", nil)
		}
		req.Status = models.CopyRequestApproved
		req.ResolvedAt = &now
		req.ResultID = idPtr(result.ResultID)

		if err := s.Activity.Record(tx, ActivityEntry{
			DriveID:    ownerDrive.ID,
			ActorID:    ownerID,
			Action:     ActionCopyRequestApprove,
			TargetType: string(req.RequestType),
			TargetID:   idPtr(req.TargetID),
			TargetName: req.TargetName,
			Metadata:   map[string]interface{}{"request_id": req.ID.String()},
		}); err != nil {
			return err
		}
		return s.recordReceived(tx, receiver.ID, ownerID, result)
	})
	s.Metrics.ObserveOperation("copy_request_approve", start, err)
	if err != nil {
		if copier != nil {
			copier.discard()
		}
		return nil, wrapInternal("failed approving copy request", err)
	}

	logger.InfoWithUser(ownerID.String(), "copy_request_approved", map[string]interface{}{
		"request_id": req.ID.String(),
		"result_id":  req.ResultID.String(),
	})
	return &req, nil
}

func (s *CopyRequestService) Deny(ctx context.Context, ownerID, requestID uuid.UUID) (*models.CopyRequest, error) {
	var req models.CopyRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOwnedPending(tx, ownerID, requestID, &req); err != nil {
			return err
		}

		now := time.Now().UTC()
		update := tx.Model(&models.CopyRequest{}).
			Where("id = ? AND status = ?", req.ID, models.CopyRequestPending).
			Updates(map[string]interface{}{
				"status":      models.CopyRequestDenied,
				"resolved_at": now,
			})
		if update.Error != nil {
			return errInternal("failed resolving copy request", update.Error)
		}
		if update.RowsAffected == 0 {
			return errConflict("request has already been resolved", nil)
		}
		req.Status = models.CopyRequestDenied
		req.ResolvedAt = &now

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    req.ToDriveID,
			ActorID:    ownerID,
			Action:     ActionCopyRequestDeny,
			TargetType: string(req.RequestType),
			TargetID:   idPtr(req.TargetID),
			TargetName: req.TargetName,
			Metadata:   map[string]interface{}{"request_id": req.ID.String()},
		})
	})
	if err != nil {
		return nil, wrapInternal("failed denying copy request", err)
	}
	return &req, nil
}

func (s *CopyRequestService) loadOwnedPending(tx *gorm.DB, ownerID, requestID uuid.UUID, req *models.CopyRequest) error {
	if err := tx.First(req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errNotFound("copy request not found")
		}
		return errInternal("failed loading copy request", err)
	}
	if req.ToUserID != ownerID {
		return errNotFound("copy request not found")
	}
	if !req.IsPending() {
		return errConflict("request has already been resolved", map[string]interface{}{
			"status": string(req.Status),
		})
	}
	return nil
}

// List returns requests the user received (Incoming) or sent, newest first.
func (s *CopyRequestService) List(ctx context.Context, userID uuid.UUID, in ListCopyRequestsInput) ([]models.CopyRequest, int64, error) {
	column := "from_user_id"
	if in.Incoming {
		column = "to_user_id"
	}
	q := s.DB.WithContext(ctx).Model(&models.CopyRequest{}).Where(column+" = ?", userID)
	if in.Status != nil {
		q = q.Where("status = ?", *in.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errInternal("failed counting copy requests", err)
	}

	requests := make([]models.CopyRequest, 0)
	p := utils.NewPagination(in.Page, in.Limit)
	if err := utils.ApplyPagination(q.Order("created_at DESC"), p).Find(&requests).Error; err != nil {
		return nil, 0, errInternal("failed listing copy requests", err)
	}
	return requests, total, nil
}

// DirectCopy copies another user's item without a request. The owner's
// drive must allow copying, and the item must be public; folders and
// subjects of a non-private drive also qualify.
func (s *CopyRequestService) DirectCopy(ctx context.Context, requesterID, ownerID uuid.UUID, kind models.CopyRequestType, targetID uuid.UUID) (*CopyResult, error) {
	start := time.Now()
	if !kind.Valid() {
		return nil, errInvalidInput("type must be subject, file or folder")
	}
	if requesterID == ownerID {
		return nil, errInvalidInput("use the copy operation for items in your own drive")
	}

	var result *CopyResult
	var copier *treeCopier
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerDrive, err := findDrive(tx, ownerID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return errNotFound(string(kind) + " not found")
			}
			return err
		}
		switch ownerDrive.AllowCopying {
		case models.CopyPolicyDeny:
			return errForbidden("the owner does not allow copying from this drive")
		case models.CopyPolicyRequest:
			return errForbidden("the owner requires a copy request")
		}

		target, err := resolveCopyTarget(tx, ownerDrive, kind, targetID)
		if err != nil {
			return err
		}
		visible := target.isPublic || (target.folder != nil && !ownerDrive.IsPrivate)
		if !visible {
			return errForbidden("this item is not shared publicly")
		}

		receiver, err := ensureDrive(tx, requesterID, s.DefaultLimit)
		if err != nil {
			return err
		}
		copier = &treeCopier{ctx: ctx, tx: tx, folders: s.Folders, srcDrive: ownerDrive, dstDrive: receiver}
		result, err = s.copyInto(copier, kind, target)
		if err != nil {
			return err
		}

		return s.Activity.Record(tx, ActivityEntry{
			DriveID:    receiver.ID,
			ActorID:    requesterID,
			Action:     ActionDirectCopy,
			TargetType: string(kind),
			TargetID:   idPtr(result.ResultID),
			TargetName: result.Name,
			Metadata: map[string]interface{}{
				"owner_id":  ownerID.String(),
				"source_id": targetID.String(),
				"bytes":     result.Bytes,
			},
		})
	})
	s.Metrics.ObserveOperation("direct_copy", start, err)
	if err != nil {
		if copier != nil {
			copier.discard()
		}
		return nil, wrapInternal("failed copying item", err)
	}
	return result, nil
}

func (s *CopyRequestService) copyInto(c *treeCopier, kind models.CopyRequestType, target *copyTarget) (*CopyResult, error) {
	if target.file != nil {
		if err := c.precheckBytes(target.file.Size); err != nil {
			return nil, err
		}
		copied, err := c.copyFile(target.file, nil)
		if err != nil {
			return nil, err
		}
		return &CopyResult{Type: kind, ResultID: copied.ID, Name: copied.OriginalName, Bytes: c.stats.bytes}, nil
	}

	name, err := availableFolderName(c.tx, c.dstDrive.ID, nil, target.folder.Name)
	if err != nil {
		return nil, err
	}
	root, err := c.copyFolder(target.folder, nil, name)
	if err != nil {
		return nil, err
	}
	return &CopyResult{Type: kind, ResultID: root.ID, Name: root.Name, Bytes: c.stats.bytes}, nil
}

func (s *CopyRequestService) recordReceived(tx *gorm.DB, driveID, ownerID uuid.UUID, result *CopyResult) error {
	action := ActionFolderCopy
	targetType := "folder"
	if result.Type == models.CopyRequestTypeFile {
		action = ActionFileCopy
		targetType = "file"
	}
	return s.Activity.Record(tx, ActivityEntry{
		DriveID:    driveID,
		ActorID:    ownerID,
		Action:     action,
		TargetType: targetType,
		TargetID:   idPtr(result.ResultID),
		TargetName: result.Name,
		Metadata:   map[string]interface{}{"bytes": result.Bytes, "via": "copy_request"},
	})
}

// availableFolderName returns base, or base with a numeric suffix when a
// live sibling already uses it.
func availableFolderName(tx *gorm.DB, driveID uuid.UUID, parentID *uuid.UUID, base string) (string, error) {
	candidate := base
	for i := 1; i <= 100; i++ {
		taken, err := folderNameTaken(tx, driveID, parentID, candidate, nil)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)", base, i)
	}
	return "", errNameConflict(base)
}
