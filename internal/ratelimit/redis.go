package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a fixed window counter shared by every instance using the same
// redis database. The first request of a window sets the key's expiry.
type Redis struct {
	client *redis.Client
	limits map[string]int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, limits map[string]int, window time.Duration, prefix string) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	if prefix == "" {
		prefix = "drive:ratelimit"
	}
	return &Redis{client: client, limits: limits, window: window, prefix: prefix, now: time.Now}
}

func (r *Redis) key(userID uuid.UUID, class string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, class, userID.String())
}

func (r *Redis) Check(ctx context.Context, userID uuid.UUID, class string) (Decision, error) {
	limit := limitFor(r.limits, class)
	if limit == 0 {
		return Decision{Allowed: true}, nil
	}

	key := r.key(userID, class)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// a key without expiry would block the user forever
		if err := r.client.PExpire(ctx, key, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = r.window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   r.now().Add(ttl),
	}, nil
}

// Close leaves the shared client open; its owner closes it.
func (r *Redis) Close() error {
	return nil
}
