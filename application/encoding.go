// Defines methods/functions to encode/decode messages between client
// and server. Currently this module supports JSON marshal/unmarshal only.

package application

import (
	"encoding/json"

	"github.com/keytrace/keytrace-go/protocol"
)

// MarshalRequest returns a JSON encoding of a prepared request message.
// Callers obtain prepared requests from the client's or the auditor's
// request builders, which attach the sender's consistency state.
func MarshalRequest(req *protocol.Request) ([]byte, error) {
	return json.Marshal(req)
}

// UnmarshalRequest parses a JSON-encoded request msg and
// creates the corresponding protocol.Request, which will be handled
// by the server.
func UnmarshalRequest(msg []byte) (*protocol.Request, error) {
	var content json.RawMessage
	req := protocol.Request{
		Request: &content,
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil, err
	}
	var request interface{}
	switch req.Type {
	case protocol.SearchType:
		request = new(protocol.SearchRequest)
	case protocol.MonitorType:
		request = new(protocol.MonitorRequest)
	case protocol.AppendType:
		request = new(protocol.AppendRequest)
	case protocol.AuditType:
		request = new(protocol.AuditRequest)
	case protocol.AuditorHeadType:
		request = new(protocol.AuditorHeadRequest)
	}
	if err := json.Unmarshal(content, &request); err != nil {
		return nil, err
	}
	req.Request = request
	return &req, nil
}

// MarshalResponse returns a JSON encoding of the server's response.
func MarshalResponse(response *protocol.Response) ([]byte, error) {
	return json.Marshal(response)
}

// UnmarshalResponse decodes the given message into a protocol.Response
// according to the given request type t. The request types are integer
// constants defined in the protocol package.
func UnmarshalResponse(t int, msg []byte) *protocol.Response {
	type Response struct {
		Error             protocol.ErrorCode
		DirectoryResponse json.RawMessage
	}
	var res Response
	if err := json.Unmarshal(msg, &res); err != nil {
		return &protocol.Response{
			Error: protocol.ErrMalformedDirectoryMessage,
		}
	}

	// DirectoryResponse is omitted for the codes in ErrorResponses
	if res.DirectoryResponse == nil {
		response := &protocol.Response{
			Error: res.Error,
		}
		if err := response.Validate(); err != res.Error {
			return &protocol.Response{
				Error: protocol.ErrMalformedDirectoryMessage,
			}
		}
		return response
	}

	var response protocol.DirectoryResponse
	switch t {
	case protocol.SearchType:
		response = new(protocol.SearchResponse)
	case protocol.MonitorType:
		response = new(protocol.MonitorResponse)
	case protocol.AppendType:
		response = new(protocol.AppendResponse)
	case protocol.AuditType:
		response = new(protocol.AuditResponse)
	case protocol.AuditorHeadType:
		response = new(protocol.ObservedHead)
	default:
		panic("[keytrace] Unknown request type")
	}
	if err := json.Unmarshal(res.DirectoryResponse, response); err != nil {
		return &protocol.Response{
			Error: protocol.ErrMalformedDirectoryMessage,
		}
	}
	return &protocol.Response{
		Error:             res.Error,
		DirectoryResponse: response,
	}
}

func malformedClientMsg(err error) *protocol.Response {
	// check if we're just propagating a message
	if err == nil {
		err = protocol.ErrMalformedMessage
	}
	return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
}
