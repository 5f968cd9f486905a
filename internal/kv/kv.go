// Package kv defines the shared TTL key-value store the engine's counters and
// transient blocks live in. The store is an injected dependency, never a
// process-local singleton, so the engine stays horizontally scalable: every
// request-handling instance sees the same counters.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the narrow contract the engine needs from its shared store.
//
// IncrWindow implements fixed-window counting: the increment is atomic and
// the TTL is armed only on the first increment of a window, so the counter
// resets to zero at window boundaries. A burst straddling the boundary can
// see up to 2x the limit; that trade-off is accepted in exchange for a
// single atomic increment-and-check per request (no sliding-window state).
type Store interface {
	// IncrWindow atomically increments key and returns the new count,
	// arming expiry to window if the key has no TTL yet.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// GetCount returns the current counter value, zero if absent.
	GetCount(ctx context.Context, key string) (int64, error)

	// Get returns the string value stored at key, ErrNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// SetTTL stores value at key with the given expiry. A zero ttl stores
	// without expiry.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
