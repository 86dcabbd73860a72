package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/household-ledger/internal/kv"
)

// Store keeps one file per key under a directory. Writes go to a temporary
// file that is renamed over the target, so a reader sees either the old or
// the new value of a key, never a torn one.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("NewStore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("NewStore: creating %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// Get implements the kv.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(key)
}

func (s *Store) read(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return data, true, nil
}

// Set implements the kv.Store interface.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value)
}

func (s *Store) write(key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %q: create temp: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: sync: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %q: close: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("write %q: rename: %w", key, err)
	}
	return nil
}

// Remove implements the kv.Store interface.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(key)
}

func (s *Store) remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// MultiGet implements the kv.Store interface.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok, err := s.read(k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// MultiSet implements the kv.Store interface. Each key is replaced atomically;
// the batch as a whole is not.
func (s *Store) MultiSet(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range entries {
		if err := s.write(k, v); err != nil {
			return err
		}
	}
	return nil
}

// MultiRemove implements the kv.Store interface.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if err := s.remove(k); err != nil {
			return err
		}
	}
	return nil
}

// Close implements the kv.Store interface.
func (s *Store) Close() error { return nil }

// Lock implements kv.Locker with an exclusively created lock file holding a
// random token. A lock file older than kv.LockTTL is removed and retaken.
func (s *Store) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	path := filepath.Join(s.dir, url.PathEscape(name)+".lock")
	token := uuid.NewString()

	err := kv.PollLock(ctx, func(context.Context) (bool, error) {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			_, werr := f.WriteString(token)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return false, fmt.Errorf("lock %q: %w", name, werr)
			}
			return true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("lock %q: %w", name, err)
		}
		if info, serr := os.Stat(path); serr == nil && time.Since(info.ModTime()) > kv.LockTTL {
			os.Remove(path)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return func(context.Context) error {
		held, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unlock %q: %w", name, err)
		}
		if string(held) != token {
			return fmt.Errorf("unlock %q: lock was taken over", name)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unlock %q: %w", name, err)
		}
		return nil
	}, nil
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Locker = (*Store)(nil)
)
