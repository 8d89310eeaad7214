package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another holder")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out expiring, token-guarded locks.
type Locker struct {
	client *redis.Client
	prefix string
}

// NewLocker creates a Locker whose keys are prefixed with prefix.
func NewLocker(client *redis.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// Lock is a held lock. Release is safe to call more than once.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire sets key with NX and ttl. Returns ErrLockHeld if it is taken.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: l.client, key: fullKey, token: token}, nil
}

// Release deletes the key only if it still holds this lock's token.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", lk.key, err)
	}
	return nil
}

// Token identifies the holder, so a background worker can release a lock
// taken by the request that enqueued it.
func (lk *Lock) Token() string {
	return lk.token
}

// ReleaseToken releases key if it is still held with token.
func (l *Locker) ReleaseToken(ctx context.Context, key, token string) error {
	lk := &Lock{client: l.client, key: l.prefix + key, token: token}
	return lk.Release(ctx)
}
