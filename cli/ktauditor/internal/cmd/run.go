package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/keytrace/keytrace-go/application/auditor"
	"github.com/keytrace/keytrace-go/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = cli.NewRunCommand("keytrace auditor",
	`Run a keytrace auditor instance.

This will audit the configured directory once per poll interval
until interrupted, and will look for config files with default names
in the current directory if not specified differently.
	`, run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "config.toml", "Path to auditor configuration file")
}

func run(cmd *cobra.Command, args []string) {
	conf := loadConfigOrExit(cmd)
	ad := auditor.NewAuditDaemon(conf)

	// run the auditor until receiving an interrupt signal
	ad.Run()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
	if err := ad.Shutdown(); err != nil {
		log.Fatal(err)
	}
}

func loadConfigOrExit(cmd *cobra.Command) *auditor.Config {
	config := cmd.Flag("config").Value.String()
	conf := &auditor.Config{}
	if err := conf.Load(config, "toml"); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
	return conf
}
