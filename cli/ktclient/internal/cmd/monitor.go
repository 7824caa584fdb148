package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// monitorCmd represents the one-shot monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Re-check every binding this client has verified so far.",
	Long: `Re-check every binding this client has verified so far against
the directory's current log. Monitoring proves that no verified key
version was dropped or rolled back, and should be run regularly.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfigOrExit(cmd)
		cc := newClientOrExit(conf)
		msg, ok := monitorBindings(cc, conf)
		if err := persistState(cc, conf); err != nil {
			fmt.Println("Couldn't save the client state:", err)
		}
		fmt.Println(msg)
		if !ok {
			os.Exit(-1)
		}
	},
}

func init() {
	RootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringP("config", "c", "config.toml",
		"Config file for the client (contains the directory's public keys etc).")
}
