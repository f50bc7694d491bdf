package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type bucketKey struct {
	user  uuid.UUID
	class string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per (user, class) in process. Each bucket
// holds limit tokens and refills at limit per window. Buckets idle for
// longer than idleTTL are swept.
type Memory struct {
	limits  map[string]int
	window  time.Duration
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	stop chan struct{}
	once sync.Once
}

func NewMemory(limits map[string]int, window, idleTTL time.Duration) *Memory {
	m := newMemory(limits, window, idleTTL, time.Now)
	go m.sweepLoop()
	return m
}

func newMemory(limits map[string]int, window, idleTTL time.Duration, now func() time.Time) *Memory {
	if window <= 0 {
		window = time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Memory{
		limits:  limits,
		window:  window,
		idleTTL: idleTTL,
		now:     now,
		buckets: make(map[bucketKey]*bucket),
		stop:    make(chan struct{}),
	}
}

func (m *Memory) Check(_ context.Context, userID uuid.UUID, class string) (Decision, error) {
	limit := limitFor(m.limits, class)
	if limit == 0 {
		return Decision{Allowed: true}, nil
	}

	now := m.now()
	every := rate.Every(m.window / time.Duration(limit))

	m.mu.Lock()
	defer m.mu.Unlock()

	key := bucketKey{user: userID, class: class}
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(every, limit)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, Limit: limit, ResetAt: now.Add(delay)}, nil
	}

	tokens := b.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}
	refill := time.Duration((float64(limit) - tokens) / float64(every) * float64(time.Second))
	return Decision{Allowed: true, Limit: limit, Remaining: remaining, ResetAt: now.Add(refill)}, nil
}

// Sweep drops buckets not used since idleTTL before now and returns how many
// remain.
func (m *Memory) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
	return len(m.buckets)
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}
