package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

var versionCmd = cli.NewVersionCommand("ktserver")

func init() {
	RootCmd.AddCommand(versionCmd)
}
