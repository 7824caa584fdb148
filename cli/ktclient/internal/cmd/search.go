package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// searchCmd represents the one-shot search command
var searchCmd = &cobra.Command{
	Use:   "search [name] (version)",
	Short: "Search the directory for the key bound to a name.",
	Long: `Search the directory for the key bound to a name, the latest
version by default or the given one. The returned proof is verified
against this client's saved consistency state before the key is
printed.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfigOrExit(cmd)
		cc := newClientOrExit(conf)
		var version *uint32
		if len(args) == 2 {
			v, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				fmt.Println("Version must be a number.")
				os.Exit(-1)
			}
			ver := uint32(v)
			version = &ver
		}
		msg, ok := keyLookup(cc, conf, args[0], version)
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
	RootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringP("config", "c", "config.toml",
		"Config file for the client (contains the directory's public keys etc).")
}
