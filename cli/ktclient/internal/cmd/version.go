package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

var versionCmd = cli.NewVersionCommand("ktclient")

func init() {
	RootCmd.AddCommand(versionCmd)
}
