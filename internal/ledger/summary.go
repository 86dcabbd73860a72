package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// Summary totals an owner's transactions over a period, in KRW.
type Summary struct {
	OwnerID int64     `json:"ownerId"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Income  int64     `json:"income"`
	Expense int64     `json:"expense"`
	// Savings and Invest are the parts of Expense filed under SAVINGS and
	// INVEST categories.
	Savings int64 `json:"savings"`
	Invest  int64 `json:"invest"`
	Net     int64 `json:"net"`
	Count   int   `json:"count"`
}

// Summarize computes the owner's Summary for [from, to). Zero bounds are open.
func (l *Ledger) Summarize(ctx context.Context, ownerID int64, from, to time.Time) (Summary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Categories, collection.Transactions)
	if err != nil {
		return Summary{}, fmt.Errorf("Summarize: %w", err)
	}

	classes := make(map[int64]domain.ExpenseClass)
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			classes[c.ID] = c.ExpenseClass
		}
	}

	sum := Summary{OwnerID: ownerID, From: from, To: to}
	filter := TransactionFilter{From: from, To: to}
	for _, t := range s.transactions {
		if t.OwnerID != ownerID || !filter.match(t) {
			continue
		}
		sum.Count++
		if t.Kind == domain.KindIncome {
			sum.Income += t.Amount
			continue
		}
		sum.Expense += t.Amount
		switch classes[t.CategoryID] {
		case domain.ClassSavings:
			sum.Savings += t.Amount
		case domain.ClassInvest:
			sum.Invest += t.Amount
		}
	}
	sum.Net = sum.Income - sum.Expense
	return sum, nil
}
