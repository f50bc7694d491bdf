package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrNotFound    = errors.New("content not found")
	ErrInvalidPath = errors.New("invalid content path")
)

// Object describes bytes written to a ContentStore.
type Object struct {
	StoredName string
	Path       string
	Hash       string
	Size       int64
}

// ContentStore persists raw file bytes. Paths are opaque to callers and are
// only ever produced by Put.
type ContentStore interface {
	Put(ctx context.Context, ownerID uuid.UUID, ext string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Clock abstracts time retrieval so object layout is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Hash returns the hex encoded BLAKE2b-256 digest of data.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// objectLocation lays objects out as <owner>/<yyyy>/<mm>/<uuid><ext>.
func objectLocation(clock Clock, ownerID uuid.UUID, ext string) (string, string) {
	now := clock.Now().UTC()
	storedName := uuid.New().String() + sanitizeExt(ext)
	path := fmt.Sprintf("%s/%04d/%02d/%s", ownerID.String(), now.Year(), int(now.Month()), storedName)
	return storedName, path
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var b strings.Builder
	b.WriteByte('.')
	for _, r := range ext[1:] {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() > 10 {
			break
		}
	}
	if b.Len() == 1 {
		return ""
	}
	return b.String()
}

// ValidatePath rejects paths that could escape the store root.
func ValidatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "\\") {
		return ErrInvalidPath
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}
