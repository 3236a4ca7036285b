// Executable TRIP Verifier, with init, run and version subcommands.
package main

import (
	"github.com/GNS-Foundation/trip-protocol/cli"
	"github.com/GNS-Foundation/trip-protocol/cli/tripverifier/internal/cmd"
)

func main() {
	cli.ExecuteRoot(cmd.RootCmd)
}
