package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/kv/inmemory"
)

func writeFixture[T any](t *testing.T, store *inmemory.Store, name collection.Name, records []T) {
	t.Helper()
	if err := collection.WriteAll(context.Background(), store, name, records); err != nil {
		t.Fatalf("WriteAll %s failed: %v", name, err)
	}
}

func TestReconcile_RepairsCraftedState(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)
	u2, err := l.CreateUser(ctx, "U2", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	writeFixture(t, store, collection.Categories, []domain.Category{
		{ID: 1, OwnerID: u1, Kind: domain.KindExpense, ExpenseClass: domain.ClassNormal, Name: "Food"},
	})
	writeFixture(t, store, collection.Transactions, []domain.Transaction{
		// Legacy transaction without an origin, filed under a deleted category.
		{ID: 1, OwnerID: u1, Kind: domain.KindExpense, Amount: 1, CategoryID: 99, OccurredAt: testNow},
		{ID: 3, OwnerID: u1, Kind: domain.KindExpense, Amount: 8000, CategoryID: 1, OccurredAt: testNow, Origin: &domain.Origin{Type: domain.OriginManual}},
		// Derived from a record that no longer exists.
		{ID: 5, OwnerID: u1, Kind: domain.KindExpense, Amount: 50, CategoryID: 1, OccurredAt: testNow, Origin: domain.DerivedOrigin(1, 9)},
	})
	writeFixture(t, store, collection.AssetFlowAccounts, []domain.AssetFlowAccount{
		{
			ID: 1, OwnerID: u1, Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Broker",
			Records: []domain.AssetFlowRecord{
				{ID: 1, Amount: 10, FxRate: rate(1300), OccurredAt: testNow, LinkedTransactionID: linkID(1)},
				{ID: 2, EntryKind: domain.EntryPnL, Amount: -2, FxRate: rate(1300), OccurredAt: testNow},
				{ID: 3, EntryKind: domain.EntryDeposit, Amount: 5, FxRate: rate(1300), OccurredAt: testNow, LinkedTransactionID: linkID(42)},
				{ID: 4, EntryKind: domain.EntryDeposit, Amount: 7, FxRate: rate(1300), OccurredAt: testNow, LinkedTransactionID: linkID(1)},
			},
		},
		{
			ID: 1, OwnerID: u2.ID, Kind: domain.AccountSavings, Currency: domain.KRW, Institution: "Bank",
			Records: []domain.AssetFlowRecord{
				{ID: 1, EntryKind: domain.EntryDeposit, Amount: 100, OccurredAt: testNow},
			},
		},
	})

	report, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	want := ReconcileReport{OwnerID: u1, Defaulted: 1, Backfilled: 1, Relinked: 2, Stamped: 1, Refreshed: 1, Pruned: 1}
	if report != want {
		t.Errorf("report = %+v\nwant     %+v", report, want)
	}
	assertLinkIntegrity(t, store, u1)

	txs := ownerTransactions(t, store, u1)
	if len(txs) != 5 {
		t.Fatalf("expected 5 transactions, got %d", len(txs))
	}
	if _, ok := txs[5]; ok {
		t.Error("orphaned derived transaction 5 was not pruned")
	}
	if tx, ok := txs[3]; !ok || tx.IsDerived() {
		t.Errorf("manual transaction 3 = %+v, %v", tx, ok)
	}
	legacy := txs[1]
	if legacy.Amount != 13000 || categoryName(t, store, u1, legacy.CategoryID) != CategoryInvestDeposit {
		t.Errorf("legacy transaction not refreshed: %+v", legacy)
	}

	accounts := readAccounts(t, store)
	wantLinks := map[int64]int64{1: 1, 2: 43, 3: 44, 4: 45}
	for _, r := range accounts[0].Records {
		id, _ := r.Linked()
		if id != wantLinks[r.ID] {
			t.Errorf("record %d linked to %d, want %d", r.ID, id, wantLinks[r.ID])
		}
		if r.EntryKind == "" {
			t.Errorf("record %d entry kind not defaulted", r.ID)
		}
	}
	if txs[43].Amount != 2600 || categoryName(t, store, u1, txs[43].CategoryID) != CategoryInvestLoss {
		t.Errorf("backfilled loss transaction = %+v", txs[43])
	}

	if _, ok := accounts[1].Records[0].Linked(); ok {
		t.Error("other owner's record was linked by owner 1 reconcile")
	}

	// A second pass finds nothing to do and writes nothing.
	before := rawState(t, store)
	again, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if again.Changed() {
		t.Errorf("second Reconcile changed state: %+v", again)
	}
	assertSameState(t, before, rawState(t, store))

	other, err := l.Reconcile(ctx, u2.ID)
	if err != nil {
		t.Fatalf("Reconcile owner 2 failed: %v", err)
	}
	if other.Backfilled != 1 || other.Pruned != 0 {
		t.Errorf("owner 2 report = %+v", other)
	}
	assertLinkIntegrity(t, store, u2.ID)
	if len(ownerTransactions(t, store, u1)) != 5 {
		t.Error("owner 2 reconcile touched owner 1 transactions")
	}
}

func TestReconcile_AdoptsOrphanInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 100})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	txID, _ := acct.Records[0].Linked()

	// The accounts write that carried the link was lost.
	acct.Records[0].LinkedTransactionID = nil
	writeFixture(t, store, collection.AssetFlowAccounts, []domain.AssetFlowAccount{acct})

	report, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Adopted != 1 || report.Backfilled != 0 || report.Pruned != 0 {
		t.Errorf("report = %+v, want one adoption", report)
	}
	got, _ := l.GetAccount(ctx, u1, acct.ID)
	if id, _ := got.Records[0].Linked(); id != txID {
		t.Errorf("record linked to %d, want adopted %d", id, txID)
	}
	if n := len(ownerTransactions(t, store, u1)); n != 1 {
		t.Errorf("expected 1 transaction, got %d", n)
	}
}

func TestReconcile_RebuildsCorruptTransactions(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Broker"}, RecordInput{Amount: 100})
	if _, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 25}); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	if err := store.Set(ctx, string(collection.Transactions), []byte("{not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	report, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Relinked != 2 {
		t.Errorf("report = %+v, want 2 relinked", report)
	}
	assertLinkIntegrity(t, store, u1)
	if n := len(ownerTransactions(t, store, u1)); n != 2 {
		t.Errorf("expected 2 rebuilt transactions, got %d", n)
	}
}

func TestReconcile_RepairsPartialWrites(t *testing.T) {
	tests := []struct {
		name      string
		keep      collection.Name
		mutate    func(ctx context.Context, l *Ledger, ownerID, accountID int64) error
		wantPrune int
		wantTxs   int
	}{
		{
			name: "transactions written, accounts lost on add",
			keep: collection.Transactions,
			mutate: func(ctx context.Context, l *Ledger, ownerID, accountID int64) error {
				_, err := l.AddRecord(ctx, ownerID, accountID, RecordInput{EntryKind: domain.EntryPnL, Amount: 9})
				return err
			},
			wantPrune: 1,
			wantTxs:   1,
		},
		{
			name: "accounts written, transactions lost on delete",
			keep: collection.AssetFlowAccounts,
			mutate: func(ctx context.Context, l *Ledger, ownerID, accountID int64) error {
				_, err := l.DeleteAccount(ctx, ownerID, accountID)
				return err
			},
			wantPrune: 1,
			wantTxs:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l, mem, u1 := newTestLedger(t)
			acct, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Broker"}, RecordInput{Amount: 100})
			if err != nil {
				t.Fatalf("CreateAccount failed: %v", err)
			}

			crashing := &failingStore{Store: mem}
			crashing.MultiSetFunc = func(ctx context.Context, entries map[string][]byte) error {
				key := string(tt.keep)
				if v, ok := entries[key]; ok {
					if err := mem.Set(ctx, key, v); err != nil {
						return err
					}
				}
				return context.DeadlineExceeded
			}
			broken := New(crashing, WithClock(func() time.Time { return testNow }))
			if err := tt.mutate(ctx, broken, u1, acct.ID); err == nil {
				t.Fatal("expected the mutation to fail")
			}

			report, err := l.Reconcile(ctx, u1)
			if err != nil {
				t.Fatalf("Reconcile failed: %v", err)
			}
			if report.Pruned != tt.wantPrune {
				t.Errorf("report = %+v, want %d pruned", report, tt.wantPrune)
			}
			if n := len(ownerTransactions(t, mem, u1)); n != tt.wantTxs {
				t.Errorf("expected %d transactions, got %d", tt.wantTxs, n)
			}
			assertLinkIntegrity(t, mem, u1)
		})
	}
}

func TestReconcile_LinkIntegrityAfterMixedOperations(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	a, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Broker"}, RecordInput{Amount: 10, FxRate: rate(1300)})
	b, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 1000})
	r2, _ := l.AddRecord(ctx, u1, a.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 3, FxRate: rate(1310)})
	r3, _ := l.AddRecord(ctx, u1, a.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: -1, FxRate: rate(1320)})
	if _, err := l.UpdateRecord(ctx, u1, a.ID, r2.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: -4, FxRate: rate(1305)}); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if err := l.DeleteRecord(ctx, u1, a.ID, r3.ID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if _, err := l.AddRecord(ctx, u1, b.ID, RecordInput{Amount: 500}); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	krw := domain.KRW
	if _, err := l.UpdateAccount(ctx, u1, a.ID, AccountUpdate{Currency: &krw}); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}

	assertLinkIntegrity(t, store, u1)
	report, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Changed() {
		t.Errorf("Reconcile found repairs after clean operations: %+v", report)
	}
}
