// Package ratelimit enforces per-user budgets for classes of write
// operations.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/studyhub/drive/internal/config"
)

// Operation classes.
const (
	ClassFileUpload   = "fileUpload"
	ClassSaveFromURL  = "saveFromUrl"
	ClassFolderCreate = "folderCreate"
	ClassCopy         = "copy"
	ClassDelete       = "delete"
	ClassRestore      = "restore"
	ClassCopyRequest  = "copyRequest"
)

// Decision is the outcome of one Check. ResetAt is when the caller may try
// again if denied, or when the budget is full again if allowed.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts one request per Check against the (user, class) budget.
type Limiter interface {
	Check(ctx context.Context, userID uuid.UUID, class string) (Decision, error)
	Close() error
}

// New builds the limiter selected by cfg.Backend. The redis client is only
// used by the "redis" backend.
func New(cfg config.RateLimitConfig, client *redis.Client) (Limiter, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Limits, cfg.Window, cfg.IdleTTL), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis rate limit backend needs a redis client")
		}
		return NewRedis(client, cfg.Limits, cfg.Window, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit backend %q", cfg.Backend)
	}
}

// limitFor returns the budget of class, or 0 when the class is unlimited.
func limitFor(limits map[string]int, class string) int {
	n, ok := limits[class]
	if !ok || n < 0 {
		return 0
	}
	return n
}
