package kv

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("kv store is closed")

// Store is a flat key-value byte medium offering whole-value reads and writes.
// Implementations must make a Set visible to every subsequent Get; nothing
// more is promised across keys.
type Store interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// MultiGet returns the values of the present keys; absent keys are omitted.
	MultiGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// MultiSet writes every entry. Backends apply it in one round trip when they can.
	MultiSet(ctx context.Context, entries map[string][]byte) error

	// MultiRemove deletes every key.
	MultiRemove(ctx context.Context, keys []string) error

	// Close releases the backend's resources.
	Close() error
}

// LockTTL is how long a held lock is honoured. A lock older than this is
// taken to belong to a crashed holder and may be taken over.
const LockTTL = 2 * time.Minute

// LockPollInterval is how often a waiting Lock retries a held lock.
const LockPollInterval = 50 * time.Millisecond

// Locker is implemented by stores that can hold a named exclusive lock shared
// by every client of the same backend, across processes.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done. release drops it.
	Lock(ctx context.Context, name string) (release func(context.Context) error, err error)
}

// PollLock calls try until it reports the lock acquired, it fails, or ctx is
// done.
func PollLock(ctx context.Context, try func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(LockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
