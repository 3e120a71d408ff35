// Package runlock keeps at most one synchronization run per tenant.
package runlock

import (
	"context"
	"errors"
	"hash/fnv"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("runlock: lock is held by another run")

type Locker interface {
	// Acquire takes the lock named key without blocking. The returned
	// release function is safe to call once.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Nop never contends.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Key names the lock of one tenant's run.
func Key(tenantID string) string {
	return "directory-sync:" + tenantID
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
