package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// appendCmd represents the one-shot append command
var appendCmd = &cobra.Command{
	Use:   "append [name] [key]",
	Short: "Append a new key for a name to the directory's log.",
	Long: `Append a new key for a name to the directory's log.

The directory answers with a proof of the append, which is verified
against this client's saved consistency state before it is trusted.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfigOrExit(cmd)
		cc := newClientOrExit(conf)
		msg, ok := appendKey(cc, conf, args[0], args[1])
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
	RootCmd.AddCommand(appendCmd)
	appendCmd.Flags().StringP("config", "c", "config.toml",
		"Config file for the client (contains the directory's public keys etc).")
}
