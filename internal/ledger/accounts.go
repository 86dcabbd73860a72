package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// AccountInput describes a new asset-flow account.
type AccountInput struct {
	Kind        domain.AccountKind `json:"type"`
	Currency    domain.Currency    `json:"currency"`
	Institution string             `json:"institution"`
	ProductName string             `json:"productName,omitempty"`
}

// AccountUpdate carries the account fields that may change. Nil fields are
// left as they are. The account kind is fixed at creation.
type AccountUpdate struct {
	Institution *string          `json:"institution,omitempty"`
	Currency    *domain.Currency `json:"currency,omitempty"`
	ProductName *string          `json:"productName,omitempty"`
}

// RecordInput describes a record to add or the new values of an edited one.
type RecordInput struct {
	EntryKind  domain.EntryKind `json:"entryKind"`
	Amount     int64            `json:"amount"`
	FxRate     *float64         `json:"fxRate,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
	Memo       string           `json:"memo,omitempty"`
}

func newRecord(account domain.AssetFlowAccount, id int64, in RecordInput, now time.Time) (domain.AssetFlowRecord, error) {
	rec := domain.AssetFlowRecord{
		ID:         id,
		EntryKind:  in.EntryKind,
		Amount:     in.Amount,
		FxRate:     in.FxRate,
		OccurredAt: in.OccurredAt,
		Memo:       in.Memo,
	}
	if rec.EntryKind == "" {
		rec.EntryKind = domain.EntryDeposit
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = now
	}
	if account.Currency != domain.USD {
		rec.FxRate = nil
	}
	if err := rec.Validate(); err != nil {
		return domain.AssetFlowRecord{}, err
	}
	if account.Kind == domain.AccountSavings && rec.EntryKind != domain.EntryDeposit {
		return domain.AssetFlowRecord{}, fmt.Errorf("%w: savings accounts only take deposits", domain.ErrInvalidInput)
	}
	return rec, nil
}

// CreateAccount creates an account with one initial DEPOSIT record and the
// record's derived transaction, in one write.
func (l *Ledger) CreateAccount(ctx context.Context, ownerID int64, in AccountInput, initial RecordInput) (domain.AssetFlowAccount, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Users, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w", err)
	}
	if err := s.requireOwner(ownerID); err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w", err)
	}
	if initial.EntryKind != "" && initial.EntryKind != domain.EntryDeposit {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w: initial record must be a deposit", domain.ErrInvalidInput)
	}

	now := l.now()
	account := domain.AssetFlowAccount{
		ID:          s.nextAccountID(ownerID),
		OwnerID:     ownerID,
		Kind:        in.Kind,
		Currency:    in.Currency,
		Institution: in.Institution,
		ProductName: in.ProductName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	account.Normalize()
	if err := account.Validate(); err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w", err)
	}

	rec, err := newRecord(account, 1, initial, now)
	if err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("CreateAccount: %w", err)
	}
	s.syncDerived(account, &rec, now)
	account.Records = []domain.AssetFlowRecord{rec}

	s.accounts = append(s.accounts, account)
	s.touch(collection.AssetFlowAccounts)
	if err := l.commit(ctx, s, "CreateAccount", ownerID); err != nil {
		return domain.AssetFlowAccount{}, err
	}
	return account, nil
}

// UpdateAccount changes account-level fields and re-derives the transaction
// of every record, since currency drives the amount mapping.
func (l *Ledger) UpdateAccount(ctx context.Context, ownerID, accountID int64, upd AccountUpdate) (domain.AssetFlowAccount, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("UpdateAccount: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("UpdateAccount: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return domain.AssetFlowAccount{}, fmt.Errorf("UpdateAccount: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}

	updated := s.accounts[ai]
	updated.Records = append([]domain.AssetFlowRecord(nil), updated.Records...)
	if upd.Institution != nil {
		updated.Institution = *upd.Institution
	}
	if upd.Currency != nil {
		updated.Currency = *upd.Currency
	}
	if upd.ProductName != nil {
		updated.ProductName = *upd.ProductName
	}
	if updated.Kind == domain.AccountSavings && upd.Currency != nil && *upd.Currency != domain.KRW {
		return domain.AssetFlowAccount{}, fmt.Errorf("UpdateAccount: %w: savings accounts are always KRW", domain.ErrInvalidInput)
	}
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("UpdateAccount: %w", err)
	}

	now := l.now()
	updated.UpdatedAt = now
	s.accounts[ai] = updated
	account := &s.accounts[ai]
	for ri := range account.Records {
		s.syncDerived(*account, &account.Records[ri], now)
	}
	s.touch(collection.AssetFlowAccounts)

	if err := l.commit(ctx, s, "UpdateAccount", ownerID); err != nil {
		return domain.AssetFlowAccount{}, err
	}
	return *account, nil
}

// DeleteAccount removes the account and every transaction derived from its
// records. It returns the number of transactions removed.
func (l *Ledger) DeleteAccount(ctx context.Context, ownerID, accountID int64) (int, error) {
	if err := l.lockWrite(ctx); err != nil {
		return 0, fmt.Errorf("DeleteAccount: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return 0, fmt.Errorf("DeleteAccount: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return 0, fmt.Errorf("DeleteAccount: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}

	account := s.accounts[ai]
	doomed := make(map[int64]bool)
	for _, rec := range account.Records {
		s.collectDerived(doomed, account, rec)
	}

	s.accounts = append(s.accounts[:ai], s.accounts[ai+1:]...)
	s.touch(collection.AssetFlowAccounts)
	removed := s.removeTransactions(ownerID, doomed)

	if err := l.commit(ctx, s, "DeleteAccount", ownerID); err != nil {
		return 0, err
	}
	return removed, nil
}

// collectDerived adds to ids the transactions owned by a record: its linked
// transaction, unless that belongs to another record, and any transaction
// tagged as derived from it.
func (s *snapshot) collectDerived(ids map[int64]bool, account domain.AssetFlowAccount, rec domain.AssetFlowRecord) {
	if txID, ok := rec.Linked(); ok {
		if i := s.transactionIndex(account.OwnerID, txID); i >= 0 && s.ownsTransaction(s.transactions[i], account.ID, rec.ID) {
			ids[txID] = true
		}
	}
	for _, t := range s.transactions {
		if t.OwnerID == account.OwnerID && t.DerivedFrom(account.ID, rec.ID) {
			ids[t.ID] = true
		}
	}
}

// GetAccount returns one account of the owner.
func (l *Ledger) GetAccount(ctx context.Context, ownerID, accountID int64) (domain.AssetFlowAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.AssetFlowAccounts)
	if err != nil {
		return domain.AssetFlowAccount{}, fmt.Errorf("GetAccount: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return domain.AssetFlowAccount{}, fmt.Errorf("GetAccount: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}
	return s.accounts[ai], nil
}

// ListAccounts returns the owner's accounts ordered by id.
func (l *Ledger) ListAccounts(ctx context.Context, ownerID int64) ([]domain.AssetFlowAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.AssetFlowAccounts)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	out := []domain.AssetFlowAccount{}
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddRecord appends a record to an account and creates its derived transaction.
func (l *Ledger) AddRecord(ctx context.Context, ownerID, accountID int64, in RecordInput) (domain.AssetFlowRecord, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("AddRecord: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("AddRecord: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return domain.AssetFlowRecord{}, fmt.Errorf("AddRecord: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}

	now := l.now()
	account := &s.accounts[ai]
	rec, err := newRecord(*account, collection.NextID(account.RecordIDs()), in, now)
	if err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("AddRecord: %w", err)
	}
	s.syncDerived(*account, &rec, now)
	account.Records = append(account.Records, rec)
	account.UpdatedAt = now
	s.touch(collection.AssetFlowAccounts)

	if err := l.commit(ctx, s, "AddRecord", ownerID); err != nil {
		return domain.AssetFlowRecord{}, err
	}
	return rec, nil
}

// UpdateRecord replaces a record's values and refreshes its derived
// transaction in place, keeping the transaction id. A record whose link is
// missing or dangling gets a new transaction.
func (l *Ledger) UpdateRecord(ctx context.Context, ownerID, accountID, recordID int64, in RecordInput) (domain.AssetFlowRecord, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("UpdateRecord: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("UpdateRecord: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return domain.AssetFlowRecord{}, fmt.Errorf("UpdateRecord: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}
	account := &s.accounts[ai]
	ri, ok := account.Record(recordID)
	if !ok {
		return domain.AssetFlowRecord{}, fmt.Errorf("UpdateRecord: %w: %d/%d", domain.ErrAssetRecordNotFound, accountID, recordID)
	}

	now := l.now()
	rec, err := newRecord(*account, recordID, in, now)
	if err != nil {
		return domain.AssetFlowRecord{}, fmt.Errorf("UpdateRecord: %w", err)
	}
	rec.LinkedTransactionID = account.Records[ri].LinkedTransactionID
	s.syncDerived(*account, &rec, now)
	account.Records[ri] = rec
	account.UpdatedAt = now
	s.touch(collection.AssetFlowAccounts)

	if err := l.commit(ctx, s, "UpdateRecord", ownerID); err != nil {
		return domain.AssetFlowRecord{}, err
	}
	return rec, nil
}

// DeleteRecord removes a record and its derived transaction.
func (l *Ledger) DeleteRecord(ctx context.Context, ownerID, accountID, recordID int64) error {
	if err := l.lockWrite(ctx); err != nil {
		return fmt.Errorf("DeleteRecord: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return fmt.Errorf("DeleteRecord: %w", err)
	}
	ai := s.accountIndex(ownerID, accountID)
	if ai < 0 {
		return fmt.Errorf("DeleteRecord: %w: %d", domain.ErrAssetAccountNotFound, accountID)
	}
	account := &s.accounts[ai]
	ri, ok := account.Record(recordID)
	if !ok {
		return fmt.Errorf("DeleteRecord: %w: %d/%d", domain.ErrAssetRecordNotFound, accountID, recordID)
	}

	doomed := make(map[int64]bool)
	s.collectDerived(doomed, *account, account.Records[ri])

	account.Records = append(account.Records[:ri], account.Records[ri+1:]...)
	account.UpdatedAt = l.now()
	s.touch(collection.AssetFlowAccounts)
	s.removeTransactions(ownerID, doomed)

	return l.commit(ctx, s, "DeleteRecord", ownerID)
}
