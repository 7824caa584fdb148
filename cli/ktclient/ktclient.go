// Executable keytrace client. See README for
// usage instructions.
package main

import (
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/cli/ktclient/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
