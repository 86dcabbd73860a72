package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type userAddCmd struct {
	name  string
	email string
}

func (*userAddCmd) Name() string     { return "user-add" }
func (*userAddCmd) Synopsis() string { return "create a user (an owner partition)" }
func (*userAddCmd) Usage() string {
	return `user-add -name <name> [-email <email>]

  Creates a user and prints its id. Use the id as -owner for other commands.
`
}

func (c *userAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Display name (required)")
	f.StringVar(&c.email, "email", "", "Contact email")
}

func (c *userAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	if c.name == "" {
		fmt.Fprintln(os.Stderr, "Error: -name is required.")
		return subcommands.ExitUsageError
	}
	u, err := e.ledger.CreateUser(ctx, c.name, c.email)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(e.out, "user %d created: %s\n", u.ID, u.Name)
	return subcommands.ExitSuccess
}

type userListCmd struct{}

func (*userListCmd) Name() string             { return "user-list" }
func (*userListCmd) Synopsis() string         { return "list users" }
func (*userListCmd) Usage() string            { return "user-list\n" }
func (*userListCmd) SetFlags(_ *flag.FlagSet) {}

func (*userListCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := envFrom(args)
	users, err := e.ledger.ListUsers(ctx)
	if err != nil {
		return fail(err)
	}
	for _, u := range users {
		fmt.Fprintf(e.out, "%d\t%s\t%s\n", u.ID, u.Name, u.Email)
	}
	return subcommands.ExitSuccess
}
