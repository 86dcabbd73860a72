package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/dvloznov/household-ledger/internal/domain"
)

type reconcileCmd struct {
	all bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "repair record and transaction links" }
func (*reconcileCmd) Usage() string {
	return `reconcile (-owner <id> | -all)

  Backfills missing derived transactions, relinks dangling records and prunes
  derived transactions no record points at. Running it twice changes nothing
  the second time.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Reconcile every user")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)

	owners := []int64{e.owner}
	if c.all {
		users, err := e.ledger.ListUsers(ctx)
		if err != nil {
			return fail(err)
		}
		owners = owners[:0]
		for _, u := range users {
			owners = append(owners, u.ID)
		}
	} else if !e.requireOwner() {
		return subcommands.ExitUsageError
	}

	for _, owner := range owners {
		r, err := e.ledger.Reconcile(ctx, owner)
		if err != nil {
			return fail(err)
		}
		if !r.Changed() {
			fmt.Fprintf(e.out, "owner %d: nothing to repair\n", owner)
			continue
		}
		fmt.Fprintf(e.out, "owner %d: defaulted=%d backfilled=%d adopted=%d relinked=%d stamped=%d refreshed=%d pruned=%d\n",
			owner, r.Defaulted, r.Backfilled, r.Adopted, r.Relinked, r.Stamped, r.Refreshed, r.Pruned)
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	from string
	to   string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "total income and expenses over a period" }
func (*summaryCmd) Usage() string {
	return "summary -owner <id> [-from YYYY-MM-DD] [-to YYYY-MM-DD]\n"
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.from, "from", "", "Inclusive start date")
	f.StringVar(&c.to, "to", "", "Exclusive end date")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() {
		return subcommands.ExitUsageError
	}
	from, err := parseDay(c.from)
	if err != nil {
		return fail(err)
	}
	to, err := parseDay(c.to)
	if err != nil {
		return fail(err)
	}

	s, err := e.ledger.Summarize(ctx, e.owner, from, to)
	if err != nil {
		return fail(err)
	}
	krw := func(v int64) string { return domain.FormatAmount(v, domain.LedgerCurrency) }
	fmt.Fprintf(e.out, "transactions: %d\n", s.Count)
	fmt.Fprintf(e.out, "income:       %s\n", krw(s.Income))
	fmt.Fprintf(e.out, "expense:      %s\n", krw(s.Expense))
	fmt.Fprintf(e.out, "  savings:    %s\n", krw(s.Savings))
	fmt.Fprintf(e.out, "  invest:     %s\n", krw(s.Invest))
	fmt.Fprintf(e.out, "net:          %s\n", krw(s.Net))
	return subcommands.ExitSuccess
}
