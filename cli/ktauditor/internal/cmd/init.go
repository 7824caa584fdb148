package cmd

import (
	"fmt"
	"log"
	"os"
	"path"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/application/auditor"
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/utils"
	"github.com/spf13/cobra"
)

var initCmd = cli.NewInitCommand("keytrace auditor", mkConfigOrExit)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".",
		"Location of directory for storing generated files")
}

func mkConfigOrExit(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	file := path.Join(dir, "config.toml")
	mkAuditorKey(dir)

	// sign.pub and vrf.pub are the audited directory's public keys,
	// distributed by its operator.
	conf := auditor.NewConfig(file, "toml", "sign.pub", "vrf.pub",
		"auditor.priv", "tcp://127.0.0.1:3000", 60, 1000)
	conf.Logger = &application.LoggerConfig{
		EnableStacktrace: true,
		Environment:      "development",
		Path:             "ktauditor.log",
	}

	if err := conf.Save(); err != nil {
		fmt.Println("Couldn't save config. Error message: [" +
			err.Error() + "]")
		os.Exit(-1)
	}
}

func mkAuditorKey(dir string) {
	sk, err := sign.GenerateKey(nil)
	if err != nil {
		log.Print(err)
		return
	}
	pk, _ := sk.Public()
	if err := utils.WriteFile(path.Join(dir, "auditor.priv"), sk, 0600); err != nil {
		log.Println(err)
		return
	}
	if err := utils.WriteFile(path.Join(dir, "auditor.pub"), pk, 0600); err != nil {
		log.Println(err)
		return
	}
}
