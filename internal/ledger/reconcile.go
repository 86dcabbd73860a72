package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// ReconcileReport counts the repairs one Reconcile call made.
type ReconcileReport struct {
	OwnerID int64 `json:"ownerId"`
	// Defaulted records had no entry kind and were set to DEPOSIT.
	Defaulted int `json:"defaulted"`
	// Backfilled records had no link and got a new derived transaction.
	Backfilled int `json:"backfilled"`
	// Adopted records had no valid link, and an unclaimed transaction derived
	// from them was linked instead of creating a new one.
	Adopted int `json:"adopted"`
	// Relinked records pointed at a missing or foreign transaction.
	Relinked int `json:"relinked"`
	// Stamped transactions were linked but carried no origin tag.
	Stamped int `json:"stamped"`
	// Refreshed transactions referenced a missing category and were re-derived.
	Refreshed int `json:"refreshed"`
	// Pruned derived transactions no record links to any more.
	Pruned int `json:"pruned"`
}

// Changed reports whether the pass modified anything.
func (r ReconcileReport) Changed() bool {
	return r.Defaulted+r.Backfilled+r.Adopted+r.Relinked+r.Stamped+r.Refreshed+r.Pruned > 0
}

// Reconcile makes every asset-flow record of the owner link to exactly one
// existing transaction derived from it, and removes derived transactions no
// record links to. It writes only when something was repaired, so running it
// again without intervening mutations changes nothing.
func (l *Ledger) Reconcile(ctx context.Context, ownerID int64) (ReconcileReport, error) {
	if err := l.lockWrite(ctx); err != nil {
		return ReconcileReport{}, fmt.Errorf("Reconcile: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions, collection.AssetFlowAccounts)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("Reconcile: %w", err)
	}

	report := s.reconcile(ownerID, l.now())
	if !report.Changed() {
		return report, nil
	}
	if err := l.commit(ctx, s, "Reconcile", ownerID); err != nil {
		return ReconcileReport{}, err
	}

	log := logger.WithOwner(logger.FromContext(ctx), ownerID)
	log.Info().
		Int("defaulted", report.Defaulted).
		Int("backfilled", report.Backfilled).
		Int("adopted", report.Adopted).
		Int("relinked", report.Relinked).
		Int("stamped", report.Stamped).
		Int("refreshed", report.Refreshed).
		Int("pruned", report.Pruned).
		Msg("Reconcile repaired ledger")
	return report, nil
}

func (s *snapshot) reconcile(ownerID int64, now time.Time) ReconcileReport {
	report := ReconcileReport{OwnerID: ownerID}
	claimed := make(map[int64]bool)

	for ai := range s.accounts {
		if s.accounts[ai].OwnerID != ownerID {
			continue
		}
		for ri := range s.accounts[ai].Records {
			account := s.accounts[ai]
			record := &s.accounts[ai].Records[ri]

			if record.EntryKind == "" {
				record.EntryKind = domain.EntryDeposit
				report.Defaulted++
				s.touch(collection.AssetFlowAccounts)
			}

			txID, linked := record.Linked()
			if linked {
				if i := s.transactionIndex(ownerID, txID); i >= 0 && !claimed[txID] {
					tx := &s.transactions[i]
					if tx.DerivedFrom(account.ID, record.ID) {
						claimed[txID] = true
						report.Refreshed += s.refreshCategory(i, account, *record, now)
						continue
					}
					if !tx.IsDerived() {
						tx.Origin = domain.DerivedOrigin(account.ID, record.ID)
						claimed[txID] = true
						s.touch(collection.Transactions)
						report.Stamped++
						report.Refreshed += s.refreshCategory(i, account, *record, now)
						continue
					}
				}
			}
			if i := s.orphanOf(ownerID, account.ID, record.ID, claimed); i >= 0 {
				record.Link(s.transactions[i].ID)
				claimed[s.transactions[i].ID] = true
				s.touch(collection.AssetFlowAccounts)
				report.Adopted++
				report.Refreshed += s.refreshCategory(i, account, *record, now)
				continue
			}

			newID := s.appendDerived(account, *record, now)
			record.Link(newID)
			claimed[newID] = true
			s.touch(collection.AssetFlowAccounts)
			if linked {
				report.Relinked++
			} else {
				report.Backfilled++
			}
		}
	}

	prune := make(map[int64]bool)
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && t.IsDerived() && !claimed[t.ID] {
			prune[t.ID] = true
		}
	}
	report.Pruned = s.removeTransactions(ownerID, prune)
	return report
}

// orphanOf finds an unclaimed transaction derived from the record. It exists
// when a write of the transactions collection succeeded but the accounts write
// that would have linked it did not.
func (s *snapshot) orphanOf(ownerID, accountID, recordID int64, claimed map[int64]bool) int {
	for i, t := range s.transactions {
		if t.OwnerID == ownerID && !claimed[t.ID] && t.DerivedFrom(accountID, recordID) {
			return i
		}
	}
	return -1
}

// refreshCategory re-derives the transaction at index i when its category no
// longer exists. It returns 1 when it did.
func (s *snapshot) refreshCategory(i int, account domain.AssetFlowAccount, record domain.AssetFlowRecord, now time.Time) int {
	if s.categoryIndex(account.OwnerID, s.transactions[i].CategoryID) >= 0 {
		return 0
	}
	s.applyDerived(&s.transactions[i], account, record, now)
	s.touch(collection.Transactions)
	return 1
}
