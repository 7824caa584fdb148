// Package cmd implements the CLI commands for a keytrace client.
package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

// RootCmd represents the base "ktclient" command when called without any
// subcommands (run, search, monitor, ...).
var RootCmd = cli.NewRootCommand("ktclient",
	"Keytrace client implementation in Go",
	`
 _                  _
| | __  ___  _   _ | |_  _ __   __ _   ___   ___
| |/ / / _ \| | | || __|| '__| / _`+"`"+` | / __| / _ \
|   < |  __/| |_| || |_ | |   | (_| || (__ |  __/
|_|\_\ \___| \__, | \__||_|    \__,_| \___| \___|
             |___/
`)
