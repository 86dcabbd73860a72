package domain

import (
	"fmt"
	"time"
)

// TransactionKind is the direction of a ledger transaction.
type TransactionKind string

const (
	KindIncome  TransactionKind = "INCOME"
	KindExpense TransactionKind = "EXPENSE"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// OriginType tells whether a transaction was entered by the user or
// materialized from an asset-flow record.
type OriginType string

const (
	OriginManual  OriginType = "MANUAL"
	OriginDerived OriginType = "DERIVED"
)

// Origin tags a transaction with where it came from. A nil Origin in stored
// data is read as MANUAL.
type Origin struct {
	Type      OriginType `json:"type"`
	AccountID int64      `json:"accountId,omitempty"`
	RecordID  int64      `json:"recordId,omitempty"`
}

// DerivedOrigin builds the origin tag of a transaction owned by a record.
func DerivedOrigin(accountID, recordID int64) *Origin {
	return &Origin{Type: OriginDerived, AccountID: accountID, RecordID: recordID}
}

// Transaction is one ledger entry. Amount is always non-negative and stored in
// KRW minor units; the direction is carried by Kind.
type Transaction struct {
	ID         int64           `json:"id"`
	OwnerID    int64           `json:"ownerId"`
	Kind       TransactionKind `json:"type"`
	Amount     int64           `json:"amount"`
	CategoryID int64           `json:"categoryId"`
	Memo       string          `json:"memo,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Origin     *Origin         `json:"origin,omitempty"`
}

// IsDerived reports whether the transaction is a projection of an asset-flow record.
func (t Transaction) IsDerived() bool {
	return t.Origin != nil && t.Origin.Type == OriginDerived
}

// DerivedFrom reports whether the transaction was derived from the given record.
func (t Transaction) DerivedFrom(accountID, recordID int64) bool {
	return t.IsDerived() && t.Origin.AccountID == accountID && t.Origin.RecordID == recordID
}

// Validate checks the fields a caller is allowed to supply.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: transaction type %q", ErrInvalidInput, t.Kind)
	}
	if t.Amount < 0 {
		return fmt.Errorf("%w: transaction amount must not be negative", ErrInvalidInput)
	}
	if t.CategoryID <= 0 {
		return fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	return nil
}
