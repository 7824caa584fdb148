package cmd

import (
	"log"
	"os"
	"strconv"
	"strings"

	clientapp "github.com/keytrace/keytrace-go/application/client"
	"github.com/keytrace/keytrace-go/cli"
	"github.com/keytrace/keytrace-go/protocol/client"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
)

const help = "- append [name] [key]:\r\n" +
	"	Append a new key for a name to the directory's log.\r\n" +
	"- lookup [name] (version):\r\n" +
	"	Look up the latest key of some known contact, or one specific version.\r\n" +
	"- monitor:\r\n" +
	"	Re-check every binding this client has verified so far.\r\n" +
	"- enable timestamp:\r\n" +
	"	Print timestamp of format <15:04:05.999999999> along with the result.\r\n" +
	"- disable timestamp:\r\n" +
	"	Disable timestamp printing.\r\n" +
	"- help:\r\n" +
	"	Display this message.\r\n" +
	"- exit, q:\r\n" +
	"	Close the REPL and exit the client."

var runCmd = cli.NewRunCommand("keytrace client", "Run gives you a REPL, so that you can invoke commands to perform keytrace operations including key appends and lookups. Currently, it supports:\n"+help, run)

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "config.toml",
		"Config file for the client (contains the directory's public keys etc).")
	runCmd.Flags().BoolP("debug", "d", false, "Turn on debugging mode")
}

func run(cmd *cobra.Command, args []string) {
	isDebugging, _ := strconv.ParseBool(cmd.Flag("debug").Value.String())
	conf := loadConfigOrExit(cmd)
	cc := newClientOrExit(conf)

	state, err := terminal.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatal(err)
	}
	defer terminal.Restore(int(os.Stdin.Fd()), state)
	term := terminal.NewTerminal(os.Stdin, "keytrace-client> ")
	for {
		line, err := term.ReadLine()
		if err != nil {
			writeLineInRawMode(term, err.Error(), isDebugging)
			return
		}

		args := strings.Fields(line)
		if len(args) < 1 {
			writeLineInRawMode(term, `[!] Type "help" for more information.`, isDebugging)
			continue
		}
		cmd := args[0]

		switch cmd {
		case "exit", "q":
			writeLineInRawMode(term, "[+] See ya.", isDebugging)
			return
		case "help":
			writeLineInRawMode(term, help, false) // turn off debugging mode for this command
		case "enable", "disable":
			if len(args) != 2 {
				writeLineInRawMode(term, "[!] Unrecognized command: "+line, isDebugging)
				continue
			}
			switch args[1] {
			case "timestamp":
				if cmd == "enable" {
					isDebugging = true
				} else {
					isDebugging = false
				}
			default:
				writeLineInRawMode(term, "[!] Unrecognized command: "+line, isDebugging)
			}
		case "append":
			if len(args) != 3 {
				writeLineInRawMode(term, "[!] Incorrect number of args to append.", isDebugging)
				continue
			}
			msg, _ := appendKey(cc, conf, args[1], args[2])
			writeLineInRawMode(term, "[+] "+msg, isDebugging)
			saveState(term, cc, conf, isDebugging)
		case "lookup":
			if len(args) != 2 && len(args) != 3 {
				writeLineInRawMode(term, "[!] Incorrect number of args to lookup.", isDebugging)
				continue
			}
			var version *uint32
			if len(args) == 3 {
				v, err := strconv.ParseUint(args[2], 10, 32)
				if err != nil {
					writeLineInRawMode(term, "[!] Version must be a number.", isDebugging)
					continue
				}
				ver := uint32(v)
				version = &ver
			}
			msg, _ := keyLookup(cc, conf, args[1], version)
			writeLineInRawMode(term, "[+] "+msg, isDebugging)
			saveState(term, cc, conf, isDebugging)
		case "monitor":
			if len(args) != 1 {
				writeLineInRawMode(term, "[!] Incorrect number of args to monitor.", isDebugging)
				continue
			}
			msg, _ := monitorBindings(cc, conf)
			writeLineInRawMode(term, "[+] "+msg, isDebugging)
			saveState(term, cc, conf, isDebugging)
		default:
			writeLineInRawMode(term, "[!] Unrecognized command: "+cmd, isDebugging)
		}
	}
}

func saveState(term *terminal.Terminal, cc *client.ConsistencyChecks,
	conf *clientapp.Config, isDebugging bool) {
	if err := persistState(cc, conf); err != nil {
		writeLineInRawMode(term, "[!] Couldn't save the client state: "+err.Error(), isDebugging)
	}
}
