package cmd

import (
	"fmt"
	"os"
	"time"

	clientapp "github.com/keytrace/keytrace-go/application/client"
	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/client"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"
)

const configMissingUsage = `
Couldn't load client's config-file.

To create a valid config, first, run
  ktserver init
if you haven't done this already. This will create a valid server configuration
and also store the server's public keys (by default in sign.pub and vrf.pub).
Then, run
  ktclient init
this creates a toml file which references these public-keys.

The client looks for a file called 'config.toml' in its current working directory.
If you prefer the config-file to be named or stored somewhere different you can
specify where to look for the config with the --config flag. For example:
 ktclient init --dir /etc/keytrace/
`

func loadConfigOrExit(cmd *cobra.Command) *clientapp.Config {
	config := cmd.Flag("config").Value.String()
	conf := &clientapp.Config{}
	if err := conf.Load(config, "toml"); err != nil {
		fmt.Println(err)
		fmt.Print(configMissingUsage)
		os.Exit(-1)
	}
	return conf
}

// newClientOrExit restores the client's consistency checks from the
// state saved under the config's state path, empty on first use.
func newClientOrExit(conf *clientapp.Config) *client.ConsistencyChecks {
	state, err := clientapp.LoadState(conf.StatePath)
	if err != nil {
		fmt.Println("Couldn't load the client's saved state:", err)
		os.Exit(-1)
	}
	return client.New(conf.SigningPubKey, conf.VRFPubKey, conf.AuditorPubKey,
		state.Verified, state.Bindings)
}

// persistState saves the client's consistency state for the next
// invocation.
func persistState(cc *client.ConsistencyChecks, conf *clientapp.Config) error {
	state := &clientapp.State{Verified: cc.Verified(), Bindings: cc.Bindings}
	return state.Save(conf.StatePath)
}

// appendKey performs a single append of the given key for the given
// name. The returned message is shown to the user; ok reports whether
// the directory's answer verified.
func appendKey(cc *client.ConsistencyChecks, conf *clientapp.Config,
	name, key string) (msg string, ok bool) {
	req := cc.AppendRequest([]byte(name), []byte(key))
	res, err := clientapp.SendRequest(conf, req)
	if err != nil {
		return "Error while receiving response: " + err.Error(), false
	}
	err = cc.HandleResponse(req, res)
	switch err {
	case nil:
		return "Successfully appended key for name: " + name, true
	case protocol.CheckVersionRegression:
		return "Oops! The directory answered with an older version than " +
			"this client already verified for [" + name + "].", false
	default:
		return "Error: " + err.Error(), false
	}
}

// keyLookup searches the directory for the key bound to a name, the
// latest version when version is nil.
func keyLookup(cc *client.ConsistencyChecks, conf *clientapp.Config,
	name string, version *uint32) (msg string, ok bool) {
	req := cc.SearchRequest([]byte(name), version)
	res, err := clientapp.SendRequest(conf, req)
	if err != nil {
		return "Error while receiving response: " + err.Error(), false
	}
	err = cc.HandleResponse(req, res)
	switch err {
	case nil:
		switch res.Error {
		case protocol.ReqSuccess:
			key, err := res.GetValue()
			if err != nil {
				return "Cannot get the key from the response, error: " +
					err.Error(), false
			}
			return "Found! Key bound to name is: [" + string(key) + "]", true
		case protocol.ReqNotFound:
			return "No key appended for that name.", true
		}
	case protocol.CheckBindingsDiffer:
		return "Oops! The directory is proving a different key for [" +
			name + "] than this client verified before.", false
	default:
		return "Error: " + err.Error(), false
	}
	return "", false
}

// monitorBindings re-checks every binding this client has verified so
// far against the directory's current log.
func monitorBindings(cc *client.ConsistencyChecks,
	conf *clientapp.Config) (msg string, ok bool) {
	req := cc.MonitorRequest()
	if req == nil {
		return "Nothing to monitor yet.", true
	}
	res, err := clientapp.SendRequest(conf, req)
	if err != nil {
		return "Error while receiving response: " + err.Error(), false
	}
	if err := cc.HandleResponse(req, res); err != nil {
		return "Error: " + err.Error(), false
	}
	return "All monitored bindings check out.", true
}

// append "\r\n" to msg and then write to terminal in raw mode.
func writeLineInRawMode(term *terminal.Terminal, msg string, printTimestamp bool) {
	if printTimestamp {
		term.Write([]byte("<" + time.Now().Format("15:04:05.999999999") + "> "))
	}
	term.Write([]byte(msg + "\r\n"))
}
