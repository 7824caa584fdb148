package client

import (
	"encoding/json"
	"os"

	"github.com/keytrace/keytrace-go/protocol/auditor"
	"github.com/keytrace/keytrace-go/protocol/client"
)

// State is the client's consistency state persisted between
// invocations: the latest verified tree head and every verified
// key-to-value binding. A client that loses this file falls back to
// trusting the directory's next response on first use.
type State struct {
	Verified *auditor.VerifiedState     `json:"verified,omitempty"`
	Bindings map[string]*client.Binding `json:"bindings,omitempty"`
}

// LoadState reads the client's saved consistency state from the given
// path. A missing file is not an error; it yields the empty state of
// a client on first contact with its directory.
func LoadState(path string) (*State, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}
	state := new(State)
	if err := json.Unmarshal(buf, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save writes the client's consistency state to the given path,
// replacing the previously saved state.
func (state *State) Save(path string) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0600)
}
