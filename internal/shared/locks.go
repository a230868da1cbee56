package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates the critical section is already owned elsewhere.
var ErrLockHeld = errors.New("lock already held")

// SyncLockKey builds the redis key guarding a shop's sync run.
func SyncLockKey(shopID string) string {
	return fmt.Sprintf("sync:shop:%s:lock", shopID)
}

// Lock is a best-effort cross-process mutex backed by redis SET NX. A nil
// Lock (or nil client) degrades to a no-op so the in-process single-flight
// guard remains the only protection.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLock constructs a Lock with the given lease duration.
func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{client: client, ttl: ttl}
}

// Acquire claims the key, returning a release func. ErrLockHeld is returned
// when another owner holds it.
func (l *Lock) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// Release only if we still own the lease.
		current, err := l.client.Get(context.Background(), key).Result()
		if err == nil && current == token {
			_ = l.client.Del(context.Background(), key).Err()
		}
	}
	return release, nil
}
