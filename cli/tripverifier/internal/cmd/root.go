// Package cmd implements the CLI commands for the TRIP Verifier
// executable.
package cmd

import (
	"github.com/GNS-Foundation/trip-protocol/cli"
)

// RootCmd represents the base "tripverifier" command when called
// without any subcommands.
var RootCmd = cli.NewRootCommand("tripverifier",
	"TRIP Verifier reference implementation in Go",
	`
___________________.__________
\__    ___/\______   \   _  \_ |__
  |    |    |       _/|  /_\  \|    \
  |    |    |    |   \|  |   \  \     \
  |____|    |____|_  /|____|__  /______/
                    \/         \/
`)
