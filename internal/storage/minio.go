package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/pkg/logger"
)

// MinIOStore keeps content in an S3 compatible bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
	clock  Clock
}

func NewMinIOStore(cfg config.StorageConfig, clock Clock) (*MinIOStore, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = RealClock{}
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket, clock: clock}, nil
}

func (m *MinIOStore) Put(ctx context.Context, ownerID uuid.UUID, ext string, data []byte, contentType string) (Object, error) {
	storedName, objectName := objectLocation(m.clock, ownerID, ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("minio_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         len(data),
			"content_type": contentType,
			"bucket":       m.bucket,
		})
		return Object{}, err
	}

	logger.Info("minio_upload_success", map[string]interface{}{
		"object_name":  objectName,
		"size":         len(data),
		"content_type": contentType,
		"bucket":       m.bucket,
	})

	return Object{
		StoredName: storedName,
		Path:       objectName,
		Hash:       Hash(data),
		Size:       int64(len(data)),
	}, nil
}

func (m *MinIOStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	if err := ValidatePath(objectName); err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, m.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("minio_download_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		logger.Error("minio_download_read_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return nil, err
	}
	return data, nil
}

func (m *MinIOStore) Delete(ctx context.Context, objectName string) error {
	if err := ValidatePath(objectName); err != nil {
		return err
	}

	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("minio_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
		return err
	}

	logger.Info("minio_delete_success", map[string]interface{}{
		"object_name": objectName,
		"bucket":      m.bucket,
	})
	return nil
}

func (m *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: ""}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
