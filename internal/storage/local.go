package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/studyhub/drive/pkg/logger"
)

// LocalStore keeps content on the local filesystem below basePath.
type LocalStore struct {
	basePath string
	clock    Clock
}

func NewLocalStore(basePath string, clock Clock) (*LocalStore, error) {
	if clock == nil {
		clock = RealClock{}
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{basePath: basePath, clock: clock}, nil
}

func (s *LocalStore) fullPath(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(path)), nil
}

func (s *LocalStore) Put(ctx context.Context, ownerID uuid.UUID, ext string, data []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	storedName, path := objectLocation(s.clock, ownerID, ext)
	full, err := s.fullPath(path)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("failed to create content directory: %w", err)
	}

	// write then rename so readers never observe a partial object
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("failed to close content: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return Object{}, fmt.Errorf("failed to publish content: %w", err)
	}

	logger.Info("content_stored", map[string]interface{}{
		"backend": "local",
		"path":    path,
		"size":    len(data),
	})

	return Object{
		StoredName: storedName,
		Path:       path,
		Hash:       Hash(data),
		Size:       int64(len(data)),
	}, nil
}

func (s *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
