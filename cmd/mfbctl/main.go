// Command mfbctl runs one-off maintenance operations against the brokerage
// backend: schema migrations, an immediate NAV refresh and a route listing.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&migrateCmd{}, "database")
	subcommands.Register(&refreshCmd{}, "valuation")
	subcommands.Register(&routesCmd{}, "http")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
