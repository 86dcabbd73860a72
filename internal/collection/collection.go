// Package collection persists the ledger's collections as whole JSON arrays
// over a kv.Store, one key per collection.
package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/household-ledger/internal/kv"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// Name is the stable key a collection is stored under. The backup
// export/import copies these arrays verbatim, so names and JSON field names
// must not change.
type Name string

const (
	Users             Name = "users"
	Categories        Name = "categories"
	Transactions      Name = "transactions"
	AssetFlowAccounts Name = "assetFlowAccounts"
)

// All lists every collection in a fixed order.
var All = []Name{Users, Categories, Transactions, AssetFlowAccounts}

// ReadAll returns every record of a collection. An absent key is an empty
// collection. Bytes that do not decode are also read as an empty collection:
// the stored data is discarded on the next write. The decode failure is logged
// as a warning and never returned.
func ReadAll[T any](ctx context.Context, store kv.Store, name Name) ([]T, error) {
	raw, ok, err := store.Get(ctx, string(name))
	if err != nil {
		return nil, fmt.Errorf("ReadAll %s: %w", name, err)
	}
	if !ok {
		return []T{}, nil
	}
	return Decode[T](ctx, name, raw), nil
}

// Decode parses a stored collection, normalizing malformed bytes to empty.
func Decode[T any](ctx context.Context, name Name, raw []byte) []T {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []T{}
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("collection", string(name)).
			Int("bytes", len(raw)).
			Msg("Malformed collection data, treating as empty")
		return []T{}
	}
	if records == nil {
		return []T{}
	}
	return records
}

// Encode serializes a collection. A nil slice is written as [] rather than null.
func Encode[T any](records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	return json.Marshal(records)
}

// WriteAll replaces the whole collection.
func WriteAll[T any](ctx context.Context, store kv.Store, name Name, records []T) error {
	data, err := Encode(records)
	if err != nil {
		return fmt.Errorf("WriteAll %s: encoding: %w", name, err)
	}
	if err := store.Set(ctx, string(name), data); err != nil {
		return fmt.Errorf("WriteAll %s: %w", name, err)
	}
	return nil
}

// Batch collects several collections to be written with one MultiSet call.
type Batch struct {
	entries map[string][]byte
	err     error
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{entries: make(map[string][]byte)}
}

// Put stages a collection in the batch. The first encoding error is kept and
// returned by Write.
func Put[T any](b *Batch, name Name, records []T) {
	if b.err != nil {
		return
	}
	data, err := Encode(records)
	if err != nil {
		b.err = fmt.Errorf("encoding %s: %w", name, err)
		return
	}
	b.entries[string(name)] = data
}

// Len returns the number of staged collections.
func (b *Batch) Len() int { return len(b.entries) }

// Write flushes the batch. An empty batch writes nothing.
func (b *Batch) Write(ctx context.Context, store kv.Store) error {
	if b.err != nil {
		return fmt.Errorf("Batch.Write: %w", b.err)
	}
	if len(b.entries) == 0 {
		return nil
	}
	if err := store.MultiSet(ctx, b.entries); err != nil {
		return fmt.Errorf("Batch.Write: %w", err)
	}
	return nil
}
