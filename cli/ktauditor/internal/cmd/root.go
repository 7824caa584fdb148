// Package cmd implements the CLI commands for a keytrace auditor
// daemon.
package cmd

import (
	"github.com/keytrace/keytrace-go/cli"
)

// RootCmd represents the base "ktauditor" command when called without any subcommands.
var RootCmd = cli.NewRootCommand("ktauditor",
	"Keytrace third-party auditor implementation in Go",
	`
 _                  _
| | __  ___  _   _ | |_  _ __   __ _   ___   ___
| |/ / / _ \| | | || __|| '__| / _`+"`"+` | / __| / _ \
|   < |  __/| |_| || |_ | |   | (_| || (__ |  __/
|_|\_\ \___| \__, | \__||_|    \__,_| \___| \___|
             |___/
`)
