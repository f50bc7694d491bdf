package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/pkg/logger"
)

// Thumbnailer renders a preview image for content it understands. It returns
// nil bytes and no error for content it does not handle.
type Thumbnailer interface {
	Generate(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// storeThumbnail asks the thumbnailer for a preview and stores it next to the
// owner's content. Every failure is swallowed: the file is kept without one.
func storeThumbnail(ctx context.Context, t Thumbnailer, store storage.ContentStore, m *metrics.Metrics, timeout time.Duration, ownerID uuid.UUID, data []byte, mimeType string) *string {
	if t == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	thumb, err := t.Generate(tctx, data, mimeType)
	if err != nil {
		logger.Warn("thumbnail_generation_failed", map[string]interface{}{
			"owner_id":  ownerID.String(),
			"mime_type": mimeType,
			"error":     err.Error(),
		})
		m.ThumbnailFailed()
		return nil
	}
	if len(thumb) == 0 {
		return nil
	}

	obj, err := store.Put(ctx, ownerID, ".jpg", thumb, "image/jpeg")
	if err != nil {
		logger.Warn("thumbnail_store_failed", map[string]interface{}{
			"owner_id": ownerID.String(),
			"error":    err.Error(),
		})
		m.ThumbnailFailed()
		return nil
	}
	return &obj.Path
}
