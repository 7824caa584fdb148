// Executable keytrace key directory server. See README for
// usage instructions.
package main

import (
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/cli/ktserver/internal/cmd"
)

func main() {
	cli.Execute(cmd.RootCmd)
}
