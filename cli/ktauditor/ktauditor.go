// Executable keytrace auditor daemon. See README for
// usage instructions.
package main

import (
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/cli/ktauditor/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
