package cmd

import (
	"github.com/GNS-Foundation/trip-protocol/cli"
)

var versionCmd = cli.NewVersionCommand("tripverifier")

func init() {
	RootCmd.AddCommand(versionCmd)
}
