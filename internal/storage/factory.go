package storage

import (
	"context"
	"fmt"

	"github.com/studyhub/drive/internal/config"
)

// New builds the ContentStore selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ContentStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalPath, nil)
	case "minio", "s3":
		store, err := NewMinIOStore(cfg, nil)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed ensuring bucket: %w", err)
		}
		return store, nil
	case "memory":
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
