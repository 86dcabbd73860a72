// Package postgres stores ledger collections in a Postgres table, one row per
// key. Batched writes run in a single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/household-ledger/internal/kv"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "kv_store"

// Store is a kv.Store over a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	table string
	owned bool
}

// Connect opens a pool for dsn, pings it and returns a store over table.
func Connect(ctx context.Context, dsn, table string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("Connect: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("Connect: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	s := NewStore(pool, table)
	s.owned = true
	return s, nil
}

// NewStore wraps an existing pool, which the caller closes.
func NewStore(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// SchemaSQL returns the DDL creating the entries table.
func SchemaSQL(table string) string {
	if table == "" {
		table = DefaultTable
	}
	return schemaSQL(pgx.Identifier{table}.Sanitize())
}

func schemaSQL(quoted string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, quoted)
}

// EnsureSchema creates the entries table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL(s.table)); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

func (s *Store) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, s.table)
}

// Get implements the kv.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements the kv.Store interface.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, s.upsertSQL(), key, value); err != nil {
		return fmt.Errorf("Set %q: %w", key, err)
	}
	return nil
}

// Remove implements the kv.Store interface.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key); err != nil {
		return fmt.Errorf("Remove %q: %w", key, err)
	}
	return nil
}

// MultiGet implements the kv.Store interface.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT key, value FROM %s WHERE key = ANY($1)`, s.table), keys)
	if err != nil {
		return nil, fmt.Errorf("MultiGet: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("MultiGet: scan: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MultiGet: %w", err)
	}
	return out, nil
}

// MultiSet implements the kv.Store interface. All entries commit together.
func (s *Store) MultiSet(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for k, v := range entries {
			batch.Queue(s.upsertSQL(), k, v)
		}
		br := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("MultiSet: %w", err)
	}
	return nil
}

// MultiRemove implements the kv.Store interface.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, s.table), keys); err != nil {
		return fmt.Errorf("MultiRemove: %w", err)
	}
	return nil
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// LockKey is the advisory lock key text for a named lock on table. Stores over
// different tables never contend.
func LockKey(table, name string) string {
	return table + "/" + name
}

// Lock implements kv.Locker with a session advisory lock held on a dedicated
// pool connection until release.
func (s *Store) Lock(ctx context.Context, name string) (func(context.Context) error, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("Lock %q: acquire connection: %w", name, err)
	}
	key := LockKey(s.table, name)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", key); err != nil {
		discard(conn)
		return nil, fmt.Errorf("Lock %q: %w", name, err)
	}

	return func(ctx context.Context) error {
		var released bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock(hashtext($1))", key).Scan(&released); err != nil {
			discard(conn)
			return fmt.Errorf("Unlock %q: %w", name, err)
		}
		conn.Release()
		if !released {
			return fmt.Errorf("Unlock %q: lock was not held", name)
		}
		return nil
	}, nil
}

// discard closes the session so any advisory lock it may hold is dropped, then
// hands the dead connection back for the pool to destroy.
func discard(conn *pgxpool.Conn) {
	_ = conn.Conn().Close(context.Background())
	conn.Release()
}

var (
	_ kv.Store  = (*Store)(nil)
	_ kv.Locker = (*Store)(nil)
)
