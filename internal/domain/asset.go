package domain

import (
	"fmt"
	"strings"
	"time"
)

// AccountKind distinguishes savings products from investment positions.
type AccountKind string

const (
	AccountSavings AccountKind = "SAVINGS"
	AccountInvest  AccountKind = "INVEST"
)

func (k AccountKind) Valid() bool {
	return k == AccountSavings || k == AccountInvest
}

// EntryKind is whether a record is a capital contribution or a profit/loss event.
type EntryKind string

const (
	EntryDeposit EntryKind = "DEPOSIT"
	EntryPnL     EntryKind = "PNL"
)

// MaxRecordAmount bounds |amount| of a record. With MaxFxRate it keeps every
// derived KRW amount inside int64.
const MaxRecordAmount int64 = 1_000_000_000_000

// MaxFxRate is the largest accepted KRW per USD rate.
const MaxFxRate = 1_000_000.0

// AssetFlowRecord is one movement on an asset-flow account. Amount is in whole
// units of the account currency; for PNL records the sign tells profit from loss.
type AssetFlowRecord struct {
	ID                  int64     `json:"id"`
	EntryKind           EntryKind `json:"entryKind,omitempty"`
	Amount              int64     `json:"amount"`
	FxRate              *float64  `json:"fxRate,omitempty"`
	OccurredAt          time.Time `json:"occurredAt"`
	Memo                string    `json:"memo,omitempty"`
	LinkedTransactionID *int64    `json:"linkedTransactionId,omitempty"`
}

// Validate enforces the amount rules of the entry kind. An empty entry kind is
// read as DEPOSIT.
func (r AssetFlowRecord) Validate() error {
	switch r.EntryKind {
	case "", EntryDeposit:
		if r.Amount <= 0 {
			return fmt.Errorf("%w: deposit amount must be positive, got %d", ErrInvalidRecordAmount, r.Amount)
		}
	case EntryPnL:
		if r.Amount == 0 {
			return fmt.Errorf("%w: profit/loss amount must not be zero", ErrInvalidRecordAmount)
		}
	default:
		return fmt.Errorf("%w: entry kind %q", ErrInvalidInput, r.EntryKind)
	}
	if r.Amount > MaxRecordAmount || r.Amount < -MaxRecordAmount {
		return fmt.Errorf("%w: magnitude exceeds %d", ErrInvalidRecordAmount, MaxRecordAmount)
	}
	if r.FxRate != nil && !(*r.FxRate > 0 && *r.FxRate <= MaxFxRate) {
		return fmt.Errorf("%w: fx rate must be in (0, %g]", ErrInvalidInput, MaxFxRate)
	}
	return nil
}

// Linked returns the linked transaction id, if any.
func (r AssetFlowRecord) Linked() (int64, bool) {
	if r.LinkedTransactionID == nil {
		return 0, false
	}
	return *r.LinkedTransactionID, true
}

// Link points the record at a transaction.
func (r *AssetFlowRecord) Link(txID int64) {
	id := txID
	r.LinkedTransactionID = &id
}

// AssetFlowAccount is a savings or investment position and its records.
type AssetFlowAccount struct {
	ID          int64             `json:"id"`
	OwnerID     int64             `json:"ownerId"`
	Kind        AccountKind       `json:"type"`
	Currency    Currency          `json:"currency"`
	Institution string            `json:"institution"`
	ProductName string            `json:"productName,omitempty"`
	Records     []AssetFlowRecord `json:"records"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Normalize applies the account-level rules: savings accounts are always KRW
// and only they carry a product name; fx rates only survive on USD accounts.
func (a *AssetFlowAccount) Normalize() {
	a.Institution = strings.TrimSpace(a.Institution)
	a.ProductName = strings.TrimSpace(a.ProductName)
	if a.Currency == "" || a.Kind == AccountSavings {
		a.Currency = KRW
	}
	if a.Kind != AccountSavings {
		a.ProductName = ""
	}
	if a.Currency != USD {
		for i := range a.Records {
			a.Records[i].FxRate = nil
		}
	}
}

func (a AssetFlowAccount) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: account type %q", ErrInvalidInput, a.Kind)
	}
	if !a.Currency.Valid() {
		return fmt.Errorf("%w: currency %q", ErrInvalidInput, a.Currency)
	}
	if a.Institution == "" {
		return fmt.Errorf("%w: institution is required", ErrInvalidInput)
	}
	return nil
}

// Record returns the index of the record with the given id.
func (a AssetFlowAccount) Record(recordID int64) (int, bool) {
	for i, r := range a.Records {
		if r.ID == recordID {
			return i, true
		}
	}
	return -1, false
}

// RecordIDs lists the ids of the account's records.
func (a AssetFlowAccount) RecordIDs() []int64 {
	ids := make([]int64, 0, len(a.Records))
	for _, r := range a.Records {
		ids = append(ids, r.ID)
	}
	return ids
}
