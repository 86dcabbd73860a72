package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

func TestScenario_InvestUSDAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, err := l.CreateAccount(ctx, u1,
		AccountInput{Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Acct A"},
		RecordInput{Amount: 1000, FxRate: rate(1300)})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	txs := ownerTransactions(t, store, u1)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	depositID, _ := acct.Records[0].Linked()
	deposit := txs[depositID]
	if deposit.Kind != domain.KindExpense || deposit.Amount != 1300000 {
		t.Errorf("deposit transaction = %+v, want EXPENSE 1300000", deposit)
	}
	if name := categoryName(t, store, u1, deposit.CategoryID); name != CategoryInvestDeposit {
		t.Errorf("deposit category = %q", name)
	}

	loss, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: -50, FxRate: rate(1300)})
	if err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	txs = ownerTransactions(t, store, u1)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	lossID, _ := loss.Linked()
	if lossID == depositID {
		t.Fatal("loss record reused the deposit transaction")
	}
	if tx := txs[lossID]; tx.Kind != domain.KindExpense || tx.Amount != 65000 {
		t.Errorf("loss transaction = %+v, want EXPENSE 65000", tx)
	}
	if name := categoryName(t, store, u1, txs[lossID].CategoryID); name != CategoryInvestLoss {
		t.Errorf("loss category = %q", name)
	}

	removed, err := l.DeleteAccount(ctx, u1, acct.ID)
	if err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteAccount removed %d transactions, want 2", removed)
	}
	if txs := ownerTransactions(t, store, u1); len(txs) != 0 {
		t.Errorf("expected no transactions left, got %d", len(txs))
	}
	if accts, _ := l.ListAccounts(ctx, u1); len(accts) != 0 {
		t.Errorf("expected no accounts left, got %d", len(accts))
	}
}

func TestCategoryReuseAcrossAccounts(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	for i, bank := range []string{"Bank A", "Bank B"} {
		_, err := l.CreateAccount(ctx, u1,
			AccountInput{Kind: domain.AccountSavings, Institution: bank, ProductName: fmt.Sprintf("Plan %d", i)},
			RecordInput{Amount: 100000})
		if err != nil {
			t.Fatalf("CreateAccount(%s) failed: %v", bank, err)
		}
	}

	count := 0
	for _, c := range readCategories(t, store) {
		if c.OwnerID == u1 && c.Name == CategorySavingsDeposit {
			count++
			if c.Kind != domain.KindExpense || c.ExpenseClass != domain.ClassSavings {
				t.Errorf("savings category = %+v", c)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one %q category, got %d", CategorySavingsDeposit, count)
	}
}

func TestResolverUsesExistingUserCategory(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	existing, err := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindIncome, Name: CategoryInvestProfit})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	acct, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Broker"}, RecordInput{Amount: 10})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	rec, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 5})
	if err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}

	id, _ := rec.Linked()
	if got := ownerTransactions(t, store, u1)[id].CategoryID; got != existing.ID {
		t.Errorf("profit filed under category %d, want existing %d", got, existing.ID)
	}
}

func TestDeleteAccount_CascadeCompleteness(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	target, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Target"}, RecordInput{Amount: 100})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	for _, amount := range []int64{20, -30, 40} {
		if _, err := l.AddRecord(ctx, u1, target.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: amount}); err != nil {
			t.Fatalf("AddRecord failed: %v", err)
		}
	}
	other, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Other"}, RecordInput{Amount: 500})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	food, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"})
	manual, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 12000, CategoryID: food.ID})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	before := ownerTransactions(t, store, u1)
	if len(before) != 6 {
		t.Fatalf("expected 6 transactions before delete, got %d", len(before))
	}

	removed, err := l.DeleteAccount(ctx, u1, target.ID)
	if err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("removed %d transactions, want 4", removed)
	}

	after := ownerTransactions(t, store, u1)
	if len(after) != 2 {
		t.Fatalf("expected 2 transactions after delete, got %d", len(after))
	}
	if _, ok := after[manual.ID]; !ok {
		t.Error("manual transaction was removed")
	}
	otherID, _ := other.Records[0].Linked()
	if _, ok := after[otherID]; !ok {
		t.Error("other account's derived transaction was removed")
	}
	if _, err := l.GetAccount(ctx, u1, target.ID); !errors.Is(err, domain.ErrAssetAccountNotFound) {
		t.Errorf("GetAccount after delete error = %v", err)
	}
}

func TestUpdateRecord_RefreshesLinkedTransactionInPlace(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Broker"}, RecordInput{Amount: 10, FxRate: rate(1300)})
	rec, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 5, FxRate: rate(1300), Memo: "q1"})
	if err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	txID, _ := rec.Linked()
	countBefore := len(ownerTransactions(t, store, u1))

	updated, err := l.UpdateRecord(ctx, u1, acct.ID, rec.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: -7, FxRate: rate(1400), Memo: " q1 fix "})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if id, _ := updated.Linked(); id != txID {
		t.Errorf("UpdateRecord relinked %d -> %d", txID, id)
	}

	txs := ownerTransactions(t, store, u1)
	if len(txs) != countBefore {
		t.Errorf("transaction count changed %d -> %d", countBefore, len(txs))
	}
	tx := txs[txID]
	if tx.Kind != domain.KindExpense || tx.Amount != 9800 || tx.Memo != "q1 fix" {
		t.Errorf("refreshed transaction = %+v", tx)
	}
	if name := categoryName(t, store, u1, tx.CategoryID); name != CategoryInvestLoss {
		t.Errorf("category = %q, want %q", name, CategoryInvestLoss)
	}
}

func TestUpdateRecord_DanglingLinkGetsNewTransaction(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	oldID, _ := acct.Records[0].Linked()

	// Simulate a lost transactions write.
	if err := collection.WriteAll[domain.Transaction](ctx, store, collection.Transactions, nil); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	rec, err := l.UpdateRecord(ctx, u1, acct.ID, acct.Records[0].ID, RecordInput{Amount: 20})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	newID, _ := rec.Linked()
	if newID == oldID {
		t.Errorf("expected a fresh id past the dangling link %d", oldID)
	}
	assertLinkIntegrity(t, store, u1)
}

func TestDeleteRecord_RemovesLinkedTransaction(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Broker"}, RecordInput{Amount: 10})
	rec, _ := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 3})
	txID, _ := rec.Linked()

	if err := l.DeleteRecord(ctx, u1, acct.ID, rec.ID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}

	txs := ownerTransactions(t, store, u1)
	if _, ok := txs[txID]; ok {
		t.Error("linked transaction survived record delete")
	}
	if len(txs) != 1 {
		t.Errorf("expected the deposit transaction to remain, got %d transactions", len(txs))
	}
	got, _ := l.GetAccount(ctx, u1, acct.ID)
	if len(got.Records) != 1 {
		t.Errorf("expected 1 record left, got %d", len(got.Records))
	}

	if err := l.DeleteRecord(ctx, u1, acct.ID, rec.ID); !errors.Is(err, domain.ErrAssetRecordNotFound) {
		t.Errorf("second DeleteRecord error = %v, want ErrAssetRecordNotFound", err)
	}
}

func TestUpdateAccount_RederivesEveryRecord(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Broker"}, RecordInput{Amount: 10, FxRate: rate(1300)})
	rec, _ := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 2, FxRate: rate(1300)})

	krw := domain.KRW
	name := "Broker KR"
	updated, err := l.UpdateAccount(ctx, u1, acct.ID, AccountUpdate{Currency: &krw, Institution: &name})
	if err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if updated.Currency != domain.KRW || updated.Institution != name {
		t.Errorf("updated account = %+v", updated)
	}
	for _, r := range updated.Records {
		if r.FxRate != nil {
			t.Errorf("record %d kept fx rate after switch to KRW", r.ID)
		}
	}

	txs := ownerTransactions(t, store, u1)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	depositID, _ := acct.Records[0].Linked()
	profitID, _ := rec.Linked()
	if txs[depositID].Amount != 10 || txs[profitID].Amount != 2 {
		t.Errorf("amounts not re-derived: deposit %d profit %d", txs[depositID].Amount, txs[profitID].Amount)
	}
}

func TestUpdateAccount_SavingsStaysKRW(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	usd := domain.USD
	if _, err := l.UpdateAccount(ctx, u1, acct.ID, AccountUpdate{Currency: &usd}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("UpdateAccount error = %v, want ErrInvalidInput", err)
	}
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	if _, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 0}); !errors.Is(err, domain.ErrInvalidRecordAmount) {
		t.Errorf("zero initial deposit error = %v", err)
	}
	if _, err := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Institution: "Broker"}, RecordInput{EntryKind: domain.EntryPnL, Amount: 5}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("PNL initial record error = %v", err)
	}

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	if _, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 0}); !errors.Is(err, domain.ErrInvalidRecordAmount) {
		t.Errorf("zero PNL error = %v", err)
	}
	if _, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: 4}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("PNL on savings error = %v", err)
	}
	invest, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Institution: "Broker", Currency: domain.USD}, RecordInput{Amount: 10})
	if _, err := l.AddRecord(ctx, u1, invest.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: math.MinInt64}); !errors.Is(err, domain.ErrInvalidRecordAmount) {
		t.Errorf("min int64 PNL error = %v", err)
	}
	if _, err := l.AddRecord(ctx, u1, invest.ID, RecordInput{Amount: domain.MaxRecordAmount + 1}); !errors.Is(err, domain.ErrInvalidRecordAmount) {
		t.Errorf("oversized deposit error = %v", err)
	}
	huge := domain.MaxFxRate * 10
	if _, err := l.AddRecord(ctx, u1, invest.ID, RecordInput{Amount: 5, FxRate: &huge}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("oversized fx rate error = %v", err)
	}
	if _, err := l.AddRecord(ctx, u1, 999, RecordInput{Amount: 4}); !errors.Is(err, domain.ErrAssetAccountNotFound) {
		t.Errorf("missing account error = %v", err)
	}
	if len(ownerTransactions(t, store, u1)) != 2 {
		t.Error("failed operations must not write transactions")
	}
}

func TestDerivedTransactionsAreReadOnly(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	txID, _ := acct.Records[0].Linked()
	tx, err := l.GetTransaction(ctx, u1, txID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if !tx.DerivedFrom(acct.ID, acct.Records[0].ID) {
		t.Errorf("derived transaction origin = %+v", tx.Origin)
	}

	_, err = l.UpdateTransaction(ctx, u1, txID, TransactionInput{Kind: domain.KindExpense, Amount: 1, CategoryID: tx.CategoryID})
	if !errors.Is(err, domain.ErrDerivedTransaction) {
		t.Errorf("UpdateTransaction error = %v, want ErrDerivedTransaction", err)
	}
	if err := l.DeleteTransaction(ctx, u1, txID); !errors.Is(err, domain.ErrDerivedTransaction) {
		t.Errorf("DeleteTransaction error = %v, want ErrDerivedTransaction", err)
	}
}

func TestManualTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)

	salary, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindIncome, Name: "Salary"})
	food, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"})

	if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 5, CategoryID: 99}); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Errorf("missing category error = %v", err)
	}
	if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 5, CategoryID: salary.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("kind mismatch error = %v", err)
	}
	if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: -5, CategoryID: food.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative amount error = %v", err)
	}

	tx, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 8000, CategoryID: food.ID, Memo: " lunch "})
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if tx.IsDerived() || tx.Memo != "lunch" {
		t.Errorf("created transaction = %+v", tx)
	}

	updated, err := l.UpdateTransaction(ctx, u1, tx.ID, TransactionInput{Kind: domain.KindIncome, Amount: 9000, CategoryID: salary.ID})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	if updated.ID != tx.ID || updated.Amount != 9000 || updated.Kind != domain.KindIncome {
		t.Errorf("updated transaction = %+v", updated)
	}

	if err := l.DeleteTransaction(ctx, u1, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if _, err := l.GetTransaction(ctx, u1, tx.ID); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("GetTransaction after delete error = %v", err)
	}
}

func TestListTransactions_Filter(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)

	food, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"})
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, when := range []time.Time{jan, feb, feb.Add(time.Hour)} {
		if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 1, CategoryID: food.ID, OccurredAt: when}); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	got, err := l.ListTransactions(ctx, u1, TransactionFilter{From: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 February transactions, got %d", len(got))
	}
	if !got[0].OccurredAt.After(got[1].OccurredAt) {
		t.Error("expected newest first")
	}

	other, _ := l.ListTransactions(ctx, u1+1, TransactionFilter{})
	if len(other) != 0 {
		t.Errorf("another owner saw %d transactions", len(other))
	}
}

func TestCategoryCRUD(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	food, err := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: " Food "})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	if food.Name != "Food" || food.ExpenseClass != domain.ClassNormal {
		t.Errorf("created category = %+v", food)
	}
	if _, err := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"}); !errors.Is(err, domain.ErrDuplicateCategory) {
		t.Errorf("duplicate error = %v", err)
	}
	if _, err := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, ExpenseClass: domain.ClassSavings, Name: "Food"}); err != nil {
		t.Errorf("same name in another class should be allowed: %v", err)
	}
	if _, err := l.CreateCategory(ctx, 404, CategoryInput{Kind: domain.KindExpense, Name: "Food"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown owner error = %v", err)
	}

	eating, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Eating out"})
	if _, err := l.UpdateCategory(ctx, u1, eating.ID, CategoryInput{Kind: domain.KindExpense, Name: "Food"}); !errors.Is(err, domain.ErrDuplicateCategory) {
		t.Errorf("rename onto existing error = %v", err)
	}
	renamed, err := l.UpdateCategory(ctx, u1, eating.ID, CategoryInput{Kind: domain.KindExpense, Name: "Restaurants"})
	if err != nil || renamed.Name != "Restaurants" {
		t.Errorf("UpdateCategory = %+v, %v", renamed, err)
	}

	for i := 0; i < 2; i++ {
		if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 100, CategoryID: food.ID}); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}
	keep, _ := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 100, CategoryID: eating.ID})

	removed, err := l.DeleteCategory(ctx, u1, food.ID)
	if err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteCategory removed %d transactions, want 2", removed)
	}
	txs := ownerTransactions(t, store, u1)
	if len(txs) != 1 || txs[keep.ID].CategoryID != eating.ID {
		t.Errorf("remaining transactions = %+v", txs)
	}
	if _, err := l.DeleteCategory(ctx, u1, food.ID); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Errorf("second DeleteCategory error = %v", err)
	}
}

func TestUpdateCategory_InUse(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 500000})
	txID, _ := acct.Records[0].Linked()
	savingsID := ownerTransactions(t, store, u1)[txID].CategoryID

	food, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"})
	if _, err := l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 100, CategoryID: food.ID}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	tests := []struct {
		name       string
		categoryID int64
		in         CategoryInput
		wantErr    error
	}{
		{"derived category to income", savingsID, CategoryInput{Kind: domain.KindIncome, Name: "Salary"}, domain.ErrCategoryInUse},
		{"derived category to another class", savingsID, CategoryInput{Kind: domain.KindExpense, ExpenseClass: domain.ClassNormal, Name: CategorySavingsDeposit}, domain.ErrCategoryInUse},
		{"manual category to income", food.ID, CategoryInput{Kind: domain.KindIncome, Name: "Food"}, domain.ErrCategoryInUse},
		{"manual category to another class", food.ID, CategoryInput{Kind: domain.KindExpense, ExpenseClass: domain.ClassInvest, Name: "Food"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.UpdateCategory(ctx, u1, tt.categoryID, tt.in)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("UpdateCategory() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("UpdateCategory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	sum, err := l.Summarize(ctx, u1, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Savings != 500000 || sum.Income != 0 {
		t.Errorf("Summarize after rejected updates = %+v", sum)
	}
	report, err := l.Reconcile(ctx, u1)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.Changed() {
		t.Errorf("Reconcile found work after rejected updates: %+v", report)
	}
}

func TestDeleteCategory_InUseByAssetAccount(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)

	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	txID, _ := acct.Records[0].Linked()
	catID := ownerTransactions(t, store, u1)[txID].CategoryID

	if _, err := l.DeleteCategory(ctx, u1, catID); !errors.Is(err, domain.ErrCategoryInUse) {
		t.Fatalf("DeleteCategory error = %v, want ErrCategoryInUse", err)
	}
	assertLinkIntegrity(t, store, u1)
}

func TestDeleteUser_RemovesPartition(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)
	u2, _ := l.CreateUser(ctx, "U2", "")

	for _, owner := range []int64{u1, u2.ID} {
		if _, err := l.CreateAccount(ctx, owner, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10}); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	if err := l.DeleteUser(ctx, u1); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if len(ownerTransactions(t, store, u1)) != 0 {
		t.Error("deleted user's transactions remain")
	}
	if len(ownerTransactions(t, store, u2.ID)) != 1 {
		t.Error("other user's transactions were touched")
	}
	if _, err := l.GetUser(ctx, u1); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser error = %v", err)
	}
}

func TestOwnersHaveIndependentIDs(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)
	u2, _ := l.CreateUser(ctx, "U2", "")

	a1, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})
	a2, _ := l.CreateAccount(ctx, u2.ID, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 20})
	if a1.ID != 1 || a2.ID != 1 {
		t.Errorf("account ids = %d, %d; want 1 for each owner", a1.ID, a2.ID)
	}

	if _, err := l.DeleteAccount(ctx, u2.ID, a1.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := l.GetAccount(ctx, u1, a1.ID); err != nil {
		t.Errorf("owner 1 account affected by owner 2 delete: %v", err)
	}
}

func TestFailedWriteLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	l, mem, u1 := newTestLedger(t)
	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 10})

	store := &failingStore{Store: mem}
	failing := New(store, WithClock(func() time.Time { return testNow }))
	before := rawState(t, mem)

	writeErr := errors.New("disk full")
	store.MultiSetFunc = func(ctx context.Context, entries map[string][]byte) error { return writeErr }

	if _, err := failing.AddRecord(ctx, u1, acct.ID, RecordInput{Amount: 5}); !errors.Is(err, writeErr) {
		t.Errorf("AddRecord error = %v, want wrapped write error", err)
	}
	if _, err := failing.DeleteAccount(ctx, u1, acct.ID); !errors.Is(err, writeErr) {
		t.Errorf("DeleteAccount error = %v, want wrapped write error", err)
	}
	assertSameState(t, before, rawState(t, mem))
}

func TestConcurrentAddRecordAllocatesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	l, store, u1 := newTestLedger(t)
	acct, _ := l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.KRW, Institution: "Broker"}, RecordInput{Amount: 10})

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.AddRecord(ctx, u1, acct.ID, RecordInput{EntryKind: domain.EntryPnL, Amount: int64(i + 1)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddRecord failed: %v", err)
		}
	}

	if txs := ownerTransactions(t, store, u1); len(txs) != workers+1 {
		t.Errorf("expected %d transactions, got %d", workers+1, len(txs))
	}
	got, _ := l.GetAccount(ctx, u1, acct.ID)
	seen := make(map[int64]bool)
	for _, r := range got.Records {
		if seen[r.ID] {
			t.Errorf("record id %d allocated twice", r.ID)
		}
		seen[r.ID] = true
	}
	assertLinkIntegrity(t, store, u1)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	l, _, u1 := newTestLedger(t)

	salary, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindIncome, Name: "Salary"})
	food, _ := l.CreateCategory(ctx, u1, CategoryInput{Kind: domain.KindExpense, Name: "Food"})
	_, _ = l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindIncome, Amount: 3000000, CategoryID: salary.ID})
	_, _ = l.CreateTransaction(ctx, u1, TransactionInput{Kind: domain.KindExpense, Amount: 50000, CategoryID: food.ID})
	_, _ = l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountSavings, Institution: "Bank"}, RecordInput{Amount: 500000})
	_, _ = l.CreateAccount(ctx, u1, AccountInput{Kind: domain.AccountInvest, Currency: domain.USD, Institution: "Broker"}, RecordInput{Amount: 100, FxRate: rate(1300)})

	sum, err := l.Summarize(ctx, u1, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if sum.Income != 3000000 || sum.Expense != 680000 || sum.Savings != 500000 || sum.Invest != 130000 {
		t.Errorf("Summarize = %+v", sum)
	}
	if sum.Net != 3000000-680000 || sum.Count != 4 {
		t.Errorf("Summarize net/count = %d/%d", sum.Net, sum.Count)
	}
}
