package client

import (
	"fmt"
	"net/url"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/application/testutil"
	"github.com/keytrace/keytrace-go/protocol"
)

// SendRequest encodes the given prepared request, delivers it to the
// client's directory, and decodes the response for the request's type.
// Append requests go to the append address when one is configured;
// every other request type uses the server address.
func SendRequest(conf *Config, req *protocol.Request) (*protocol.Response, error) {
	msg, err := application.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	address := conf.Address
	if req.Type == protocol.AppendType && conf.AppendAddress != "" {
		address = conf.AppendAddress
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	var rev []byte
	switch u.Scheme {
	case "tcp":
		rev, err = testutil.NewTCPClient(msg, address)
	case "unix":
		rev, err = testutil.NewUnixClient(msg, address)
	default:
		return nil, fmt.Errorf("Invalid server address: %s", address)
	}
	if err != nil {
		return nil, err
	}

	return application.UnmarshalResponse(req.Type, rev), nil
}
