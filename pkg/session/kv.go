package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get when the key does not exist or has
// expired.
var ErrNotFound = errors.New("session: key not found")

// KV is the minimal key-value contract the conversation store needs.
// Satisfied by Redis in production and by an in-process cache in tests
// and degraded mode.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}
