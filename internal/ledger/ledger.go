// Package ledger is the local ledger store: plain CRUD over categories and
// transactions, asset-flow accounts whose records project into derived
// transactions, and the reconcile pass that repairs the links between them.
//
// The medium is a flat key-value store with no cross-key transactions. Every
// operation validates completely before staging its writes, then writes all
// touched collections in one batch. A crash between collection writes is
// repaired by Reconcile.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/kv"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// OwnerResolver returns the owner of the current request. ok is false for an
// anonymous caller.
type OwnerResolver func(ctx context.Context) (ownerID int64, ok bool)

// WriterLock is the name of the store lock every mutation holds.
const WriterLock = "ledger-writer"

// DefaultLockTimeout bounds how long a mutation waits for the store lock.
const DefaultLockTimeout = 30 * time.Second

// Ledger serializes every mutation behind one writer lock. All owners share
// the same physical collections, so the lock is store-wide rather than
// per-owner: two writers touching different owners would still race on the
// same blob. When the store is a kv.Locker the lock also spans every process
// sharing the backend.
type Ledger struct {
	store       kv.Store
	mu          sync.RWMutex
	now         func() time.Time
	lockTimeout time.Duration

	// release drops the store lock; set only while mu is held for writing.
	release func(context.Context) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLockTimeout overrides DefaultLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.lockTimeout = d }
}

// New creates a ledger over store.
func New(store kv.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now, lockTimeout: DefaultLockTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// snapshot is the working set of one operation: each collection is an arena
// of records addressed by slice index, with references between collections
// validated by the operation before anything is written.
type snapshot struct {
	users        []domain.User
	categories   []domain.Category
	transactions []domain.Transaction
	accounts     []domain.AssetFlowAccount

	dirty map[collection.Name]bool
}

// lockWrite takes the in-process writer lock and, for lockable stores, the
// store lock. On success the caller must defer unlockWrite.
func (l *Ledger) lockWrite(ctx context.Context) error {
	l.mu.Lock()
	locker, ok := l.store.(kv.Locker)
	if !ok {
		return nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, l.lockTimeout)
	defer cancel()
	release, err := locker.Lock(lockCtx, WriterLock)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("acquire %s: %w", WriterLock, err)
	}
	l.release = release
	return nil
}

func (l *Ledger) unlockWrite(ctx context.Context) {
	if l.release != nil {
		if err := l.release(context.WithoutCancel(ctx)); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("lock", WriterLock).Msg("Failed to release store lock")
		}
		l.release = nil
	}
	l.mu.Unlock()
}

func (l *Ledger) load(ctx context.Context, names ...collection.Name) (*snapshot, error) {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, string(n))
	}
	raw, err := l.store.MultiGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	s := &snapshot{dirty: make(map[collection.Name]bool)}
	for _, n := range names {
		data := raw[string(n)]
		switch n {
		case collection.Users:
			s.users = collection.Decode[domain.User](ctx, n, data)
		case collection.Categories:
			s.categories = collection.Decode[domain.Category](ctx, n, data)
		case collection.Transactions:
			s.transactions = collection.Decode[domain.Transaction](ctx, n, data)
		case collection.AssetFlowAccounts:
			s.accounts = collection.Decode[domain.AssetFlowAccount](ctx, n, data)
		}
	}
	return s, nil
}

func (s *snapshot) touch(names ...collection.Name) {
	for _, n := range names {
		s.dirty[n] = true
	}
}

func (s *snapshot) flush(ctx context.Context, store kv.Store) error {
	b := collection.NewBatch()
	for n := range s.dirty {
		switch n {
		case collection.Users:
			collection.Put(b, n, s.users)
		case collection.Categories:
			collection.Put(b, n, s.categories)
		case collection.Transactions:
			collection.Put(b, n, s.transactions)
		case collection.AssetFlowAccounts:
			collection.Put(b, n, s.accounts)
		}
	}
	return b.Write(ctx, store)
}

// commit writes the snapshot and logs the operation.
func (l *Ledger) commit(ctx context.Context, s *snapshot, op string, ownerID int64) error {
	if err := s.flush(ctx, l.store); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("op", op).Int64("owner_id", ownerID).Int("collections", len(s.dirty)).Msg("Ledger write")
	return nil
}

func (s *snapshot) userIndex(id int64) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (s *snapshot) categoryIndex(ownerID, id int64) int {
	for i, c := range s.categories {
		if c.OwnerID == ownerID && c.ID == id {
			return i
		}
	}
	return -1
}

func (s *snapshot) transactionIndex(ownerID, id int64) int {
	for i, t := range s.transactions {
		if t.OwnerID == ownerID && t.ID == id {
			return i
		}
	}
	return -1
}

func (s *snapshot) accountIndex(ownerID, id int64) int {
	for i, a := range s.accounts {
		if a.OwnerID == ownerID && a.ID == id {
			return i
		}
	}
	return -1
}

func (s *snapshot) requireOwner(ownerID int64) error {
	if s.userIndex(ownerID) < 0 {
		return fmt.Errorf("%w: %d", domain.ErrUserNotFound, ownerID)
	}
	return nil
}

// nextTransactionID allocates over the owner's transaction ids and every id
// still held by one of the owner's record links, so a dangling link is never
// captured by an unrelated new transaction.
func (s *snapshot) nextTransactionID(ownerID int64) int64 {
	var txIDs, linked []int64
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			txIDs = append(txIDs, t.ID)
		}
	}
	for _, a := range s.accounts {
		if a.OwnerID != ownerID {
			continue
		}
		for _, r := range a.Records {
			if id, ok := r.Linked(); ok {
				linked = append(linked, id)
			}
		}
	}
	return collection.NextID(txIDs, linked)
}

func (s *snapshot) nextCategoryID(ownerID int64) int64 {
	var ids []int64
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			ids = append(ids, c.ID)
		}
	}
	return collection.NextID(ids)
}

func (s *snapshot) nextAccountID(ownerID int64) int64 {
	var ids []int64
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			ids = append(ids, a.ID)
		}
	}
	return collection.NextID(ids)
}

// removeTransactions drops the owner's transactions whose id is in ids and
// returns how many were removed.
func (s *snapshot) removeTransactions(ownerID int64, ids map[int64]bool) int {
	if len(ids) == 0 {
		return 0
	}
	kept := s.transactions[:0]
	removed := 0
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && ids[t.ID] {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.transactions = kept
	if removed > 0 {
		s.touch(collection.Transactions)
	}
	return removed
}
