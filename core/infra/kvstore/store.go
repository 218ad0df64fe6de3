package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no value (or it expired).
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the persistence boundary for session state. Implementations must
// provide read-your-writes consistency per key.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// SetNX stores value only if the key is absent, returning true when the
	// write happened. Used for bounded idempotency windows.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Close() error
}
