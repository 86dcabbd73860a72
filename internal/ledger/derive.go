package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// Names of the categories derived transactions are filed under.
const (
	CategorySavingsDeposit = "Savings deposit"
	CategoryInvestDeposit  = "Investment deposit"
	CategoryInvestProfit   = "Investment profit"
	CategoryInvestLoss     = "Investment loss"
)

// Derived is the shape of the transaction an asset-flow record implies.
// Amount is in KRW and never negative.
type Derived struct {
	Kind         domain.TransactionKind
	ExpenseClass domain.ExpenseClass
	CategoryName string
	Amount       int64
	Memo         string
	OccurredAt   time.Time
}

// Derive maps an (account, record) pair to its transaction shape. It is total:
// every pair yields exactly one shape.
//
//	SAVINGS any           -> EXPENSE/SAVINGS "Savings deposit"     abs(amount)
//	INVEST  DEPOSIT       -> EXPENSE/INVEST  "Investment deposit"  convert(abs(amount))
//	INVEST  PNL, amount>=0 -> INCOME          "Investment profit"   convert(amount)
//	INVEST  PNL, amount<0  -> EXPENSE/INVEST  "Investment loss"     convert(abs(amount))
func Derive(account domain.AssetFlowAccount, record domain.AssetFlowRecord) Derived {
	d := Derived{
		Memo:       strings.TrimSpace(record.Memo),
		OccurredAt: record.OccurredAt,
	}
	amount := abs(record.Amount)

	switch {
	case account.Kind == domain.AccountSavings:
		d.Kind, d.ExpenseClass, d.CategoryName = domain.KindExpense, domain.ClassSavings, CategorySavingsDeposit
		d.Amount = amount
	case record.EntryKind == domain.EntryPnL && record.Amount >= 0:
		d.Kind, d.ExpenseClass, d.CategoryName = domain.KindIncome, domain.ClassNormal, CategoryInvestProfit
		d.Amount = convert(account, record, amount)
	case record.EntryKind == domain.EntryPnL:
		d.Kind, d.ExpenseClass, d.CategoryName = domain.KindExpense, domain.ClassInvest, CategoryInvestLoss
		d.Amount = convert(account, record, amount)
	default:
		d.Kind, d.ExpenseClass, d.CategoryName = domain.KindExpense, domain.ClassInvest, CategoryInvestDeposit
		d.Amount = convert(account, record, amount)
	}
	return d
}

// convert turns an amount in the account currency into KRW. USD amounts are
// multiplied by the record's fx rate (1 when absent) and truncated toward zero.
func convert(account domain.AssetFlowAccount, record domain.AssetFlowRecord, amount int64) int64 {
	if account.Currency != domain.USD {
		return amount
	}
	rate := decimal.NewFromInt(1)
	if record.FxRate != nil {
		rate = decimal.NewFromFloat(*record.FxRate)
	}
	krw := decimal.NewFromInt(amount).Mul(rate).Truncate(0)
	if krw.GreaterThan(maxKRW) {
		return math.MaxInt64
	}
	return krw.IntPart()
}

var maxKRW = decimal.NewFromInt(math.MaxInt64)

// abs saturates at math.MaxInt64 so math.MinInt64 stays non-negative.
func abs(v int64) int64 {
	switch {
	case v == math.MinInt64:
		return math.MaxInt64
	case v < 0:
		return -v
	}
	return v
}

// applyDerived writes the derived shape into tx, resolving its category.
func (s *snapshot) applyDerived(tx *domain.Transaction, account domain.AssetFlowAccount, record domain.AssetFlowRecord, now time.Time) {
	d := Derive(account, record)
	cat := s.resolveCategory(account.OwnerID, d.Kind, d.ExpenseClass, d.CategoryName, now)

	tx.Kind = d.Kind
	tx.Amount = d.Amount
	tx.CategoryID = cat.ID
	tx.Memo = d.Memo
	tx.OccurredAt = d.OccurredAt
	tx.Origin = domain.DerivedOrigin(account.ID, record.ID)
	tx.UpdatedAt = now
}

// appendDerived creates the derived transaction of a record and returns its id.
// The caller links the record.
func (s *snapshot) appendDerived(account domain.AssetFlowAccount, record domain.AssetFlowRecord, now time.Time) int64 {
	tx := domain.Transaction{
		ID:        s.nextTransactionID(account.OwnerID),
		OwnerID:   account.OwnerID,
		CreatedAt: now,
	}
	s.applyDerived(&tx, account, record, now)
	s.transactions = append(s.transactions, tx)
	s.touch(collection.Transactions)
	return tx.ID
}

// syncDerived makes the record's linked transaction match its derivation:
// updated in place when the link resolves to this record's transaction,
// created and linked otherwise. The record is updated through the pointer.
func (s *snapshot) syncDerived(account domain.AssetFlowAccount, record *domain.AssetFlowRecord, now time.Time) {
	if txID, ok := record.Linked(); ok {
		if i := s.transactionIndex(account.OwnerID, txID); i >= 0 && s.ownsTransaction(s.transactions[i], account.ID, record.ID) {
			s.applyDerived(&s.transactions[i], account, *record, now)
			s.touch(collection.Transactions)
			return
		}
	}
	record.Link(s.appendDerived(account, *record, now))
	s.touch(collection.AssetFlowAccounts)
}

// ownsTransaction reports whether a linked transaction can be kept for the
// record: either it was derived from it, or it predates origin tagging.
func (s *snapshot) ownsTransaction(tx domain.Transaction, accountID, recordID int64) bool {
	return tx.DerivedFrom(accountID, recordID) || !tx.IsDerived()
}
