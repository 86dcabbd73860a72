package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// TransactionInput is what a user supplies for a manual transaction.
type TransactionInput struct {
	Kind       domain.TransactionKind `json:"type"`
	Amount     int64                  `json:"amount"`
	CategoryID int64                  `json:"categoryId"`
	Memo       string                 `json:"memo,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// TransactionFilter narrows ListTransactions. Zero values match everything;
// From is inclusive and To exclusive.
type TransactionFilter struct {
	From       time.Time
	To         time.Time
	Kind       domain.TransactionKind
	CategoryID int64
}

func (f TransactionFilter) match(t domain.Transaction) bool {
	if !f.From.IsZero() && t.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.OccurredAt.Before(f.To) {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	return true
}

// checkCategory verifies the referenced category exists for the owner and
// has the same kind as the transaction.
func (s *snapshot) checkCategory(ownerID int64, t domain.Transaction) error {
	ci := s.categoryIndex(ownerID, t.CategoryID)
	if ci < 0 {
		return fmt.Errorf("%w: %d", domain.ErrCategoryNotFound, t.CategoryID)
	}
	if s.categories[ci].Kind != t.Kind {
		return fmt.Errorf("%w: category %d is %s, transaction is %s", domain.ErrInvalidInput, t.CategoryID, s.categories[ci].Kind, t.Kind)
	}
	return nil
}

// CreateTransaction records a manual transaction.
func (l *Ledger) CreateTransaction(ctx context.Context, ownerID int64, in TransactionInput) (domain.Transaction, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Users, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := s.requireOwner(ownerID); err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}

	now := l.now()
	t := domain.Transaction{
		OwnerID:    ownerID,
		Kind:       in.Kind,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Memo:       strings.TrimSpace(in.Memo),
		OccurredAt: in.OccurredAt,
		CreatedAt:  now,
		UpdatedAt:  now,
		Origin:     &domain.Origin{Type: domain.OriginManual},
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = now
	}
	if err := t.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}
	if err := s.checkCategory(ownerID, t); err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}

	t.ID = s.nextTransactionID(ownerID)
	s.transactions = append(s.transactions, t)
	s.touch(collection.Transactions)
	if err := l.commit(ctx, s, "CreateTransaction", ownerID); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// UpdateTransaction edits a manual transaction. Derived transactions are
// read-only here; edit the asset record instead.
func (l *Ledger) UpdateTransaction(ctx context.Context, ownerID, txID int64, in TransactionInput) (domain.Transaction, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	ti := s.transactionIndex(ownerID, txID)
	if ti < 0 {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w: %d", domain.ErrTransactionNotFound, txID)
	}
	if s.transactions[ti].IsDerived() {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w: %d", domain.ErrDerivedTransaction, txID)
	}

	t := s.transactions[ti]
	t.Kind = in.Kind
	t.Amount = in.Amount
	t.CategoryID = in.CategoryID
	t.Memo = strings.TrimSpace(in.Memo)
	if !in.OccurredAt.IsZero() {
		t.OccurredAt = in.OccurredAt
	}
	if err := t.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	if err := s.checkCategory(ownerID, t); err != nil {
		return domain.Transaction{}, fmt.Errorf("UpdateTransaction: %w", err)
	}
	t.UpdatedAt = l.now()
	s.transactions[ti] = t
	s.touch(collection.Transactions)

	if err := l.commit(ctx, s, "UpdateTransaction", ownerID); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

// DeleteTransaction removes a manual transaction.
func (l *Ledger) DeleteTransaction(ctx context.Context, ownerID, txID int64) error {
	if err := l.lockWrite(ctx); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Transactions)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	ti := s.transactionIndex(ownerID, txID)
	if ti < 0 {
		return fmt.Errorf("DeleteTransaction: %w: %d", domain.ErrTransactionNotFound, txID)
	}
	if s.transactions[ti].IsDerived() {
		return fmt.Errorf("DeleteTransaction: %w: %d", domain.ErrDerivedTransaction, txID)
	}

	s.removeTransactions(ownerID, map[int64]bool{txID: true})
	return l.commit(ctx, s, "DeleteTransaction", ownerID)
}

// GetTransaction returns one transaction of the owner.
func (l *Ledger) GetTransaction(ctx context.Context, ownerID, txID int64) (domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Transactions)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransaction: %w", err)
	}
	ti := s.transactionIndex(ownerID, txID)
	if ti < 0 {
		return domain.Transaction{}, fmt.Errorf("GetTransaction: %w: %d", domain.ErrTransactionNotFound, txID)
	}
	return s.transactions[ti], nil
}

// ListTransactions returns the owner's transactions matching the filter,
// newest first.
func (l *Ledger) ListTransactions(ctx context.Context, ownerID int64, filter TransactionFilter) ([]domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Transactions)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	out := []domain.Transaction{}
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && filter.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
