package ledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/kv/inmemory"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *inmemory.Store, int64) {
	t.Helper()
	store := inmemory.NewStore()
	l := New(store, WithClock(func() time.Time { return testNow }))
	u, err := l.CreateUser(context.Background(), "U1", "u1@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return l, store, u.ID
}

func rate(v float64) *float64 { return &v }

func linkID(v int64) *int64 { return &v }

func readTransactions(t *testing.T, store *inmemory.Store) []domain.Transaction {
	t.Helper()
	txs, err := collection.ReadAll[domain.Transaction](context.Background(), store, collection.Transactions)
	if err != nil {
		t.Fatalf("ReadAll transactions failed: %v", err)
	}
	return txs
}

func readCategories(t *testing.T, store *inmemory.Store) []domain.Category {
	t.Helper()
	cats, err := collection.ReadAll[domain.Category](context.Background(), store, collection.Categories)
	if err != nil {
		t.Fatalf("ReadAll categories failed: %v", err)
	}
	return cats
}

func readAccounts(t *testing.T, store *inmemory.Store) []domain.AssetFlowAccount {
	t.Helper()
	accts, err := collection.ReadAll[domain.AssetFlowAccount](context.Background(), store, collection.AssetFlowAccounts)
	if err != nil {
		t.Fatalf("ReadAll accounts failed: %v", err)
	}
	return accts
}

func ownerTransactions(t *testing.T, store *inmemory.Store, ownerID int64) map[int64]domain.Transaction {
	t.Helper()
	out := make(map[int64]domain.Transaction)
	for _, tx := range readTransactions(t, store) {
		if tx.OwnerID == ownerID {
			out[tx.ID] = tx
		}
	}
	return out
}

func categoryName(t *testing.T, store *inmemory.Store, ownerID, id int64) string {
	t.Helper()
	for _, c := range readCategories(t, store) {
		if c.OwnerID == ownerID && c.ID == id {
			return c.Name
		}
	}
	t.Fatalf("category %d not found for owner %d", id, ownerID)
	return ""
}

// rawState captures every collection's stored bytes.
func rawState(t *testing.T, store *inmemory.Store) map[string][]byte {
	t.Helper()
	keys := make([]string, 0, len(collection.All))
	for _, n := range collection.All {
		keys = append(keys, string(n))
	}
	raw, err := store.MultiGet(context.Background(), keys)
	if err != nil {
		t.Fatalf("MultiGet failed: %v", err)
	}
	return raw
}

func assertSameState(t *testing.T, before, after map[string][]byte) {
	t.Helper()
	if len(before) != len(after) {
		t.Fatalf("collections present changed: %d -> %d", len(before), len(after))
	}
	for k, v := range before {
		if !bytes.Equal(v, after[k]) {
			t.Errorf("collection %s changed:\nbefore %s\nafter  %s", k, v, after[k])
		}
	}
}

// assertLinkIntegrity checks every record of the owner links to an existing
// transaction derived from it and no transaction is linked twice.
func assertLinkIntegrity(t *testing.T, store *inmemory.Store, ownerID int64) {
	t.Helper()
	txs := ownerTransactions(t, store, ownerID)
	seen := make(map[int64]bool)
	for _, a := range readAccounts(t, store) {
		if a.OwnerID != ownerID {
			continue
		}
		for _, r := range a.Records {
			id, ok := r.Linked()
			if !ok {
				t.Errorf("record %d/%d has no link", a.ID, r.ID)
				continue
			}
			tx, exists := txs[id]
			if !exists {
				t.Errorf("record %d/%d links to missing transaction %d", a.ID, r.ID, id)
				continue
			}
			if !tx.DerivedFrom(a.ID, r.ID) {
				t.Errorf("transaction %d origin %+v does not match record %d/%d", id, tx.Origin, a.ID, r.ID)
			}
			if seen[id] {
				t.Errorf("transaction %d linked by more than one record", id)
			}
			seen[id] = true
		}
	}
}

// failingStore wraps the in-memory store so tests can make writes fail.
type failingStore struct {
	*inmemory.Store
	MultiSetFunc func(ctx context.Context, entries map[string][]byte) error
}

func (f *failingStore) MultiSet(ctx context.Context, entries map[string][]byte) error {
	if f.MultiSetFunc != nil {
		return f.MultiSetFunc(ctx, entries)
	}
	return f.Store.MultiSet(ctx, entries)
}

// hookStore runs MultiGetFunc before delegating reads to the shared store.
// Embedding keeps the inmemory store's Lock, so ledgers over a hookStore and
// over the bare store contend for the same writer lock.
type hookStore struct {
	*inmemory.Store
	MultiGetFunc func(ctx context.Context, keys []string)
}

func (h *hookStore) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if h.MultiGetFunc != nil {
		h.MultiGetFunc(ctx, keys)
	}
	return h.Store.MultiGet(ctx, keys)
}
