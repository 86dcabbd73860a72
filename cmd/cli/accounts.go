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

// recordFlags are shared by the commands that take an asset-flow record.
type recordFlags struct {
	entry  string
	amount int64
	fxRate float64
	memo   string
	date   string
}

func (r *recordFlags) set(f *flag.FlagSet) {
	f.StringVar(&r.entry, "entry", "DEPOSIT", "DEPOSIT or PNL")
	f.Int64Var(&r.amount, "amount", 0, "Amount in the account currency; PNL may be negative")
	f.Float64Var(&r.fxRate, "fx", 0, "KRW per USD for USD accounts, defaults to 1")
	f.StringVar(&r.memo, "memo", "", "Free-text memo")
	f.StringVar(&r.date, "date", "", "Date the movement occurred, defaults to now")
}

func (r *recordFlags) input() (ledger.RecordInput, error) {
	occurred, err := parseDay(r.date)
	if err != nil {
		return ledger.RecordInput{}, err
	}
	in := ledger.RecordInput{
		EntryKind:  domain.EntryKind(strings.ToUpper(r.entry)),
		Amount:     r.amount,
		OccurredAt: occurred,
		Memo:       r.memo,
	}
	if r.fxRate > 0 {
		rate := r.fxRate
		in.FxRate = &rate
	}
	return in, nil
}

type accountAddCmd struct {
	kind        string
	currency    string
	institution string
	product     string
	initial     recordFlags
}

func (*accountAddCmd) Name() string     { return "account-add" }
func (*accountAddCmd) Synopsis() string { return "open a savings or investment account" }
func (*accountAddCmd) Usage() string {
	return `account-add -owner <id> -type SAVINGS|INVEST -institution <name> -amount <n> [-currency KRW|USD] [-product <name>] [-fx <rate>] [-memo <text>] [-date YYYY-MM-DD]

  Opens an account with its initial deposit. The deposit is also recorded as
  a ledger expense under "Savings deposit" or "Investment deposit".
`
}

func (c *accountAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", "SAVINGS", "SAVINGS or INVEST")
	f.StringVar(&c.currency, "currency", "KRW", "KRW or USD; savings accounts are always KRW")
	f.StringVar(&c.institution, "institution", "", "Bank or broker (required)")
	f.StringVar(&c.product, "product", "", "Product name, savings accounts only")
	c.initial.set(f)
}

func (c *accountAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() || c.institution == "" {
		fmt.Fprintln(os.Stderr, "Error: -owner and -institution are required.")
		return subcommands.ExitUsageError
	}
	initial, err := c.initial.input()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	initial.EntryKind = domain.EntryDeposit

	acct, err := e.ledger.CreateAccount(ctx, e.owner, ledger.AccountInput{
		Kind:        domain.AccountKind(strings.ToUpper(c.kind)),
		Currency:    domain.Currency(strings.ToUpper(c.currency)),
		Institution: c.institution,
		ProductName: c.product,
	}, initial)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(e.out, "account %d created: %s %s %s\n", acct.ID, acct.Kind, acct.Currency, acct.Institution)
	return subcommands.ExitSuccess
}

type accountListCmd struct{}

func (*accountListCmd) Name() string             { return "account-list" }
func (*accountListCmd) Synopsis() string         { return "list the owner's accounts and their records" }
func (*accountListCmd) Usage() string            { return "account-list -owner <id>\n" }
func (*accountListCmd) SetFlags(_ *flag.FlagSet) {}

func (*accountListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() {
		return subcommands.ExitUsageError
	}
	accounts, err := e.ledger.ListAccounts(ctx, e.owner)
	if err != nil {
		return fail(err)
	}
	for _, a := range accounts {
		fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Kind, a.Currency, a.Institution, a.ProductName)
		for _, r := range a.Records {
			linked := "-"
			if id, ok := r.Linked(); ok {
				linked = fmt.Sprintf("tx=%d", id)
			}
			fmt.Fprintf(e.out, "  %d\t%s\t%s\t%s\t%s\n",
				r.ID, r.OccurredAt.Format("2006-01-02"), r.EntryKind, domain.FormatAmount(r.Amount, a.Currency), linked)
		}
	}
	return subcommands.ExitSuccess
}

type recordAddCmd struct {
	account int64
	record  recordFlags
}

func (*recordAddCmd) Name() string     { return "record-add" }
func (*recordAddCmd) Synopsis() string { return "add a deposit or profit/loss record to an account" }
func (*recordAddCmd) Usage() string {
	return `record-add -owner <id> -account <id> -amount <n> [-entry DEPOSIT|PNL] [-fx <rate>] [-memo <text>] [-date YYYY-MM-DD]
`
}

func (c *recordAddCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.account, "account", 0, "Account id (required)")
	c.record.set(f)
}

func (c *recordAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() || c.account == 0 {
		fmt.Fprintln(os.Stderr, "Error: -owner and -account are required.")
		return subcommands.ExitUsageError
	}
	in, err := c.record.input()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	rec, err := e.ledger.AddRecord(ctx, e.owner, c.account, in)
	if err != nil {
		return fail(err)
	}
	txID, _ := rec.Linked()
	fmt.Fprintf(e.out, "record %d added to account %d, transaction %d\n", rec.ID, c.account, txID)
	return subcommands.ExitSuccess
}
