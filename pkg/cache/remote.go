package cache

import (
	"context"
	"errors"
	"time"
)

// ErrRemoteMiss is returned by RemoteStore.Get when the key is absent.
var ErrRemoteMiss = errors.New("cache: remote miss")

// RemoteStore is an optional second cache level shared between processes.
// It is consulted after the in-process LRU misses and before the scheduler
// is asked. Implementations must return ErrRemoteMiss for absent keys;
// any other error is treated as a miss by callers, never as a failure.
type RemoteStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}
