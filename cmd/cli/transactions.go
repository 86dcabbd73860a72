package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/dvloznov/household-ledger/internal/domain"
	"github.com/dvloznov/household-ledger/internal/ledger"
)

type txAddCmd struct {
	kind     string
	amount   int64
	category int64
	memo     string
	date     string
}

func (*txAddCmd) Name() string     { return "tx-add" }
func (*txAddCmd) Synopsis() string { return "record a manual transaction" }
func (*txAddCmd) Usage() string {
	return `tx-add -owner <id> -type INCOME|EXPENSE -amount <krw> -category <id> [-memo <text>] [-date YYYY-MM-DD]

  Records a manual transaction. Amounts are whole won and never negative.
`
}

func (c *txAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", "EXPENSE", "INCOME or EXPENSE")
	f.Int64Var(&c.amount, "amount", 0, "Amount in KRW (required)")
	f.Int64Var(&c.category, "category", 0, "Category id (required)")
	f.StringVar(&c.memo, "memo", "", "Free-text memo")
	f.StringVar(&c.date, "date", "", "Date the transaction occurred, defaults to now")
}

func (c *txAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() || c.category == 0 {
		fmt.Fprintln(os.Stderr, "Error: -owner and -category are required.")
		return subcommands.ExitUsageError
	}
	occurred, err := parseDay(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	tx, err := e.ledger.CreateTransaction(ctx, e.owner, ledger.TransactionInput{
		Kind:       domain.TransactionKind(strings.ToUpper(c.kind)),
		Amount:     c.amount,
		CategoryID: c.category,
		Memo:       c.memo,
		OccurredAt: occurred,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(e.out, "transaction %d created: %s %s\n", tx.ID, tx.Kind, domain.FormatAmount(tx.Amount, domain.LedgerCurrency))
	return subcommands.ExitSuccess
}

type txListCmd struct {
	from string
	to   string
}

func (*txListCmd) Name() string     { return "tx-list" }
func (*txListCmd) Synopsis() string { return "list the owner's transactions, newest first" }
func (*txListCmd) Usage() string {
	return "tx-list -owner <id> [-from YYYY-MM-DD] [-to YYYY-MM-DD]\n"
}

func (c *txListCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Inclusive start date")
	f.StringVar(&c.to, "to", "", "Exclusive end date")
}

func (c *txListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() {
		return subcommands.ExitUsageError
	}
	from, err := parseDay(c.from)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	to, err := parseDay(c.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}

	txs, err := e.ledger.ListTransactions(ctx, e.owner, ledger.TransactionFilter{From: from, To: to})
	if err != nil {
		return fail(err)
	}
	for _, t := range txs {
		origin := string(domain.OriginManual)
		if t.IsDerived() {
			origin = fmt.Sprintf("%s(%d/%d)", domain.OriginDerived, t.Origin.AccountID, t.Origin.RecordID)
		}
		fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\tcat=%d\t%s\t%s\n",
			t.ID, t.OccurredAt.Format("2006-01-02"), t.Kind,
			domain.FormatAmount(t.Amount, domain.LedgerCurrency), t.CategoryID, origin, t.Memo)
	}
	return subcommands.ExitSuccess
}
