// Package gcs stores ledger collections as objects in a Cloud Storage bucket,
// one object per key.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/household-ledger/internal/kv"
)

const writeTimeout = 2 * time.Minute

// Store is a kv.Store over a GCS bucket. Objects live under prefix and are
// named after the key with a .json suffix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	owned  bool
}

// NewStore creates a storage client using Application Default Credentials.
func NewStore(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStore: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}
	s := NewStoreWithClient(client, bucket, prefix)
	s.owned = true
	return s, nil
}

// NewStoreWithClient uses an existing client, which the caller closes.
func NewStoreWithClient(client *storage.Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ObjectName returns the object a key is stored under.
func ObjectName(prefix, key string) string {
	return path.Join(prefix, key+".json")
}

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(ObjectName(s.prefix, key))
}

// Get implements the kv.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get %q: open GCS object reader: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("Get %q: read GCS object: %w", key, err)
	}
	return data, true, nil
}

// Set implements the kv.Store interface. GCS replaces an object atomically on
// writer close.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("Set %q: write GCS object: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Set %q: finalize upload: %w", key, err)
	}
	return nil
}

// Remove implements the kv.Store interface.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("Remove %q: delete GCS object: %w", key, err)
	}
	return nil
}

// MultiGet implements the kv.Store interface.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("MultiGet: %w", err)
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// MultiSet implements the kv.Store interface. GCS has no multi-object
// transaction, so objects are written one at a time.
func (s *Store) MultiSet(ctx context.Context, entries map[string][]byte) error {
	for k, v := range entries {
		if err := s.Set(ctx, k, v); err != nil {
			return fmt.Errorf("MultiSet: %w", err)
		}
	}
	return nil
}

// MultiRemove implements the kv.Store interface.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			return fmt.Errorf("MultiRemove: %w", err)
		}
	}
	return nil
}

// Close closes the client when the store created it.
func (s *Store) Close() error {
	if s.owned && s.client != nil {
		return s.client.Close()
	}
	return nil
}

// LockObjectName returns the object a named lock is held in.
func LockObjectName(prefix, name string) string {
	return path.Join(prefix, name+".lock")
}

// Lock implements kv.Locker. The lock is an object created with a
// does-not-exist precondition and deleted by generation on release. A lock
// object older than kv.LockTTL is deleted and retaken.
func (s *Store) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	obj := s.client.Bucket(s.bucket).Object(LockObjectName(s.prefix, name))
	var generation int64

	err := kv.PollLock(ctx, func(ctx context.Context) (bool, error) {
		w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		w.ContentType = "text/plain"
		if _, err := w.Write([]byte(time.Now().UTC().Format(time.RFC3339Nano))); err != nil {
			_ = w.Close()
			return false, fmt.Errorf("Lock %q: write lock object: %w", name, err)
		}
		err := w.Close()
		if err == nil {
			generation = w.Attrs().Generation
			return true, nil
		}
		if !isPreconditionFailed(err) {
			return false, fmt.Errorf("Lock %q: create lock object: %w", name, err)
		}

		attrs, err := obj.Attrs(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("Lock %q: read lock object: %w", name, err)
		}
		if time.Since(attrs.Created) > kv.LockTTL {
			_ = obj.If(storage.Conditions{GenerationMatch: attrs.Generation}).Delete(ctx)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := obj.If(storage.Conditions{GenerationMatch: generation}).Delete(ctx)
		switch {
		case err == nil, errors.Is(err, storage.ErrObjectNotExist):
			return nil
		case isPreconditionFailed(err):
			return fmt.Errorf("Unlock %q: lock was taken over", name)
		default:
			return fmt.Errorf("Unlock %q: delete lock object: %w", name, err)
		}
	}, nil
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Locker = (*Store)(nil)
)
