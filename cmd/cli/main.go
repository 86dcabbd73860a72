package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/household-ledger/internal/config"
	"github.com/dvloznov/household-ledger/internal/ledger"
	"github.com/dvloznov/household-ledger/internal/logger"
)

// env is what every command receives as its first Execute argument.
type env struct {
	ledger *ledger.Ledger
	owner  int64
	out    io.Writer
}

// commands lists every subcommand the CLI registers.
var commands = []subcommands.Command{
	&userAddCmd{},
	&userListCmd{},
	&categoryAddCmd{},
	&categoryListCmd{},
	&txAddCmd{},
	&txListCmd{},
	&accountAddCmd{},
	&accountListCmd{},
	&recordAddCmd{},
	&reconcileCmd{},
	&summaryCmd{},
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML config file (or set LEDGER_CONFIG env)")
		owner      = flag.Int64("owner", 0, "Owner (user id) to act as")
	)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "ledger")
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), 5*time.Minute)
	defer cancel()

	store, err := config.OpenStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s store: %v\n", cfg.Backend, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	e := &env{ledger: ledger.New(store), owner: *owner, out: os.Stdout}
	status := commander.Execute(ctx, e)
	store.Close()
	os.Exit(int(status))
}

func envFrom(args []interface{}) *env {
	if len(args) == 0 {
		return nil
	}
	e, _ := args[0].(*env)
	return e
}

// requireOwner reports a usage error when no -owner was given.
func (e *env) requireOwner() bool {
	if e.owner <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -owner is required for this command.")
		return false
	}
	return true
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

// parseDay parses a YYYY-MM-DD flag value; empty means zero time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
