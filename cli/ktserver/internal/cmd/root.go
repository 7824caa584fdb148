// Package cmd implements the CLI commands for a keytrace key directory
// server.
package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

// RootCmd represents the base "ktserver" command when called without any subcommands.
var RootCmd = cli.NewRootCommand("ktserver",
	"Keytrace key directory server implementation in Go",
	`
 _                  _
| | __  ___  _   _ | |_  _ __   __ _   ___   ___
| |/ / / _ \| | | || __|| '__| / _`+"`"+` | / __| / _ \
|   < |  __/| |_| || |_ | |   | (_| || (__ |  __/
|_|\_\ \___| \__, | \__||_|    \__,_| \___| \___|
             |___/
`)
