package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

var versionCmd = cli.NewVersionCommand("ktauditor")

func init() {
	RootCmd.AddCommand(versionCmd)
}
