// Command caseledger ingests the public workplace case report page into a
// case ledger database.
//
// Subcommands:
//
//	ingest    fetch the page and store its cases (dry run without --env)
//	migrate   apply or inspect schema migrations
//	aliases   print the alias table or the raw names it misses
//	patterns  list extraction pattern sets
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ebcovid/caseledger/internal/transport/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
