package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryLockout is the in-process Lockout used when Redis is not configured.
type MemoryLockout struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]lockoutEntry
}

type lockoutEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryLockout(window time.Duration) *MemoryLockout {
	return &MemoryLockout{window: window, now: time.Now, entries: make(map[string]lockoutEntry)}
}

func (l *MemoryLockout) current(voterID string) lockoutEntry {
	e, ok := l.entries[voterID]
	if !ok || !l.now().Before(e.expiresAt) {
		delete(l.entries, voterID)
		return lockoutEntry{}
	}
	return e
}

func (l *MemoryLockout) Failures(_ context.Context, voterID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current(voterID).count, nil
}

func (l *MemoryLockout) RecordFailure(_ context.Context, voterID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.current(voterID)
	if e.count == 0 {
		e.expiresAt = l.now().Add(l.window)
	}
	e.count++
	l.entries[voterID] = e
	return e.count, nil
}

func (l *MemoryLockout) Reset(_ context.Context, voterID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, voterID)
	return nil
}

// RedisLockout keeps one counter per voter that expires with the window.
type RedisLockout struct {
	client redis.Cmdable
	window time.Duration
	prefix string
}

func NewRedisLockout(client redis.Cmdable, window time.Duration) *RedisLockout {
	return &RedisLockout{client: client, window: window, prefix: "ballot:identity:failures:"}
}

func (l *RedisLockout) key(voterID string) string {
	return l.prefix + voterID
}

func (l *RedisLockout) Failures(ctx context.Context, voterID string) (int, error) {
	n, err := l.client.Get(ctx, l.key(voterID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read verification failures: %w", err)
	}
	return n, nil
}

func (l *RedisLockout) RecordFailure(ctx context.Context, voterID string) (int, error) {
	key := l.key(voterID)
	var incr *redis.IntCmd
	// The window starts at the first failure; NX keeps later failures from
	// extending it.
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record verification failure: %w", err)
	}
	return int(incr.Val()), nil
}

func (l *RedisLockout) Reset(ctx context.Context, voterID string) error {
	if err := l.client.Del(ctx, l.key(voterID)).Err(); err != nil {
		return fmt.Errorf("reset verification failures: %w", err)
	}
	return nil
}
