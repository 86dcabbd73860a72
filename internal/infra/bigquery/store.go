package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/household-ledger/internal/kv"
)

// Store is a kv.Store over a BigQuery table of (key, value, updated_ts)
// rows. It holds a shared client to avoid a connection per operation.
type Store struct {
	client    *bigquery.Client
	datasetID string
	table     string
	ref       string
	now       func() time.Time
}

// NewStore creates a BigQuery client for projectID and a store over
// datasetID.table. An empty table means DefaultTable.
func NewStore(ctx context.Context, projectID, datasetID, table string) (*Store, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewStore: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, datasetID, table), nil
}

// NewStoreWithClient creates a store using the provided client. Close closes
// the client.
func NewStoreWithClient(client *bigquery.Client, datasetID, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		client:    client,
		datasetID: datasetID,
		table:     table,
		ref:       TableRef(client.Project(), datasetID, table),
		now:       time.Now,
	}
}

// EnsureTable creates the backing table if needed.
func (s *Store) EnsureTable(ctx context.Context) error {
	return EnsureTableWithClient(ctx, s.client, s.datasetID, s.table)
}

// Get implements the kv.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rows, err := GetEntriesWithClient(ctx, s.client, s.ref, []string{key})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].Value, true, nil
}

// Set implements the kv.Store interface.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return UpsertEntriesWithClient(ctx, s.client, s.ref, map[string][]byte{key: value}, s.now())
}

// Remove implements the kv.Store interface.
func (s *Store) Remove(ctx context.Context, key string) error {
	return DeleteEntriesWithClient(ctx, s.client, s.ref, []string{key})
}

// MultiGet implements the kv.Store interface.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	rows, err := GetEntriesWithClient(ctx, s.client, s.ref, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// MultiSet implements the kv.Store interface in one MERGE.
func (s *Store) MultiSet(ctx context.Context, entries map[string][]byte) error {
	return UpsertEntriesWithClient(ctx, s.client, s.ref, entries, s.now())
}

// MultiRemove implements the kv.Store interface.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	return DeleteEntriesWithClient(ctx, s.client, s.ref, keys)
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Lock implements kv.Locker with a lock row in the entries table, claimed by a
// conditional MERGE. A row untouched for kv.LockTTL is taken over.
func (s *Store) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	token := []byte(uuid.NewString())
	err := kv.PollLock(ctx, func(ctx context.Context) (bool, error) {
		now := s.now()
		return AcquireLockWithClient(ctx, s.client, s.ref, name, token, now, now.Add(-kv.LockTTL))
	})
	if err != nil {
		return nil, fmt.Errorf("Lock %q: %w", name, err)
	}

	return func(ctx context.Context) error {
		released, err := ReleaseLockWithClient(ctx, s.client, s.ref, name, token)
		if err != nil {
			return fmt.Errorf("Unlock %q: %w", name, err)
		}
		if !released {
			return fmt.Errorf("Unlock %q: lock was taken over", name)
		}
		return nil
	}, nil
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Locker = (*Store)(nil)
)
