package inmemory

import (
	"context"
	"sync"

	"github.com/dvloznov/household-ledger/internal/kv"
)

// Store is an in-memory implementation of kv.Store.
// It is safe for concurrent use. Data is lost when the process exits, so it
// backs tests and throwaway sessions.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	closed bool

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		values: make(map[string][]byte),
		locks:  make(map[string]chan struct{}),
	}
}

// Lock implements kv.Locker. Every client of the same Store shares the lock.
func (s *Store) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	s.locksMu.Lock()
	ch, ok := s.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[name] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}

// Get implements the kv.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, kv.ErrClosed
	}

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	// Return a copy to avoid external modifications
	return clone(v), true, nil
}

// Set implements the kv.Store interface.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	s.values[key] = clone(value)
	return nil
}

// Remove implements the kv.Store interface.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	delete(s.values, key)
	return nil
}

// MultiGet implements the kv.Store interface.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kv.ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = clone(v)
		}
	}
	return out, nil
}

// MultiSet implements the kv.Store interface. All entries become visible at once.
func (s *Store) MultiSet(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	for k, v := range entries {
		s.values[k] = clone(v)
	}
	return nil
}

// MultiRemove implements the kv.Store interface.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Close implements the kv.Store interface.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Ensure Store implements kv.Store interface.
var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Locker = (*Store)(nil)
)
