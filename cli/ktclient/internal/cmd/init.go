package cmd

import (
	"fmt"
	"os"
	"path"

	"github.com/keytrace/keytrace-go/application/client"
	"github.com/keytrace/keytrace-go/cli"
	"github.com/spf13/cobra"
)

var initCmd = cli.NewInitCommand("keytrace client", mkConfigOrExit)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".",
		"Location of directory for storing generated files")
}

func mkConfigOrExit(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	file := path.Join(dir, "config.toml")

	// sign.pub and vrf.pub are the directory's public keys,
	// distributed by its operator. Appends go to the server's local
	// append socket; the default TCP listener only serves reads.
	conf := client.NewConfig(file, "toml", "sign.pub", "vrf.pub", "",
		"state.json", "unix:///tmp/keytrace.sock", "tcp://127.0.0.1:3000")

	if err := conf.Save(); err != nil {
		fmt.Println("Couldn't save config. Error message: [" +
			err.Error() + "]")
		os.Exit(-1)
	}
}
