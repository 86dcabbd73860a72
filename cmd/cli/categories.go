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

type categoryAddCmd struct {
	kind  string
	class string
	name  string
}

func (*categoryAddCmd) Name() string     { return "category-add" }
func (*categoryAddCmd) Synopsis() string { return "create a category" }
func (*categoryAddCmd) Usage() string {
	return `category-add -owner <id> -type INCOME|EXPENSE -name <name> [-class NORMAL|SAVINGS|INVEST]

  Creates a category. Income categories are always NORMAL.
`
}

func (c *categoryAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "type", "EXPENSE", "INCOME or EXPENSE")
	f.StringVar(&c.class, "class", "NORMAL", "Expense class: NORMAL, SAVINGS or INVEST")
	f.StringVar(&c.name, "name", "", "Category name (required)")
}

func (c *categoryAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() || c.name == "" {
		fmt.Fprintln(os.Stderr, "Error: -owner and -name are required.")
		return subcommands.ExitUsageError
	}
	cat, err := e.ledger.CreateCategory(ctx, e.owner, ledger.CategoryInput{
		Kind:         domain.TransactionKind(strings.ToUpper(c.kind)),
		ExpenseClass: domain.ExpenseClass(strings.ToUpper(c.class)),
		Name:         c.name,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(e.out, "category %d created: %s %s/%s\n", cat.ID, cat.Name, cat.Kind, cat.ExpenseClass)
	return subcommands.ExitSuccess
}

type categoryListCmd struct{}

func (*categoryListCmd) Name() string             { return "category-list" }
func (*categoryListCmd) Synopsis() string         { return "list the owner's categories" }
func (*categoryListCmd) Usage() string            { return "category-list -owner <id>\n" }
func (*categoryListCmd) SetFlags(_ *flag.FlagSet) {}

func (*categoryListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if !e.requireOwner() {
		return subcommands.ExitUsageError
	}
	cats, err := e.ledger.ListCategories(ctx, e.owner)
	if err != nil {
		return fail(err)
	}
	for _, c := range cats {
		fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\n", c.ID, c.Kind, c.ExpenseClass, c.Name)
	}
	return subcommands.ExitSuccess
}
