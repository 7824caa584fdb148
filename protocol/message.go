// Defines the message format of the transparency log protocol
// and constructors for the response messages of each operation.

package protocol

import (
	"github.com/keytrace/keytrace-go/prefixtree"
)

// The types of requests clients, write paths, and auditors send to a
// key directory.
const (
	SearchType = iota
	MonitorType
	AppendType
	AuditType
	AuditorHeadType
)

// A Request message defines the data a caller must send to a key
// directory for a particular request.
type Request struct {
	Type    int
	Request interface{}
}

// A TreeHead is a signature over one observed state of the log. The
// signature covers the tree size, the issuance time, the log root at
// that size, and the log's configuration identifier, so a party
// holding only the public key can authenticate the snapshot.
type TreeHead struct {
	TreeSize  uint64 `json:"tree_size"`
	Timestamp int64  `json:"timestamp"`
	Signature []byte `json:"signature"`
}

// An AuditorTreeHead is a tree head signed by the directory's auditor,
// observed out-of-band by the directory and attached to responses for
// fork detection. When the auditor's observed size is smaller than the
// directory's current size, RootValue holds the log root at the
// auditor's size and Consistency proves that root is a prefix of the
// current one; both are omitted when the sizes match.
type AuditorTreeHead struct {
	TreeHead    *TreeHead `json:"tree_head"`
	RootValue   []byte    `json:"root_value,omitempty"`
	Consistency [][]byte  `json:"consistency,omitempty"`
}

// A FullTreeHead carries the directory's current tree head together
// with the consistency proofs a client asked for through its request's
// consistency parameters, and the latest auditor tree head known to
// the directory.
type FullTreeHead struct {
	TreeHead        *TreeHead        `json:"tree_head"`
	Consistency     [][]byte         `json:"consistency,omitempty"`
	Distinguished   [][]byte         `json:"distinguished,omitempty"`
	AuditorTreeHead *AuditorTreeHead `json:"auditor_tree_head,omitempty"`
}

// ConsistencyParameters name the tree sizes a client has already
// verified: Last is the size it saw most recently, Distinguished an
// older pinned size it retains for long-lived fork detection. A nil
// field asks for no proof against that size; both nil marks the
// client's first contact with the directory.
type ConsistencyParameters struct {
	Last          *uint64 `json:"last,omitempty"`
	Distinguished *uint64 `json:"distinguished,omitempty"`
}

// An UpdateValue is the value a key maps to. The per-update signature
// is a deprecated field retained only so old senders still parse; it
// is never produced or checked.
type UpdateValue struct {
	Value     []byte `json:"value"`
	Signature []byte `json:"signature,omitempty"`
}

// A ProofStep proves the contents of one log entry: the prefix tree
// search result for the entry's snapshot and the entry's commitment
// are exactly what a verifier needs to recompute the entry's leaf
// hash.
type ProofStep struct {
	Prefix     *prefixtree.SearchResult `json:"prefix"`
	Commitment []byte                   `json:"commitment"`
}

// A SearchProof is the outcome of a binary search over log positions:
// the position the search converged on, one ProofStep per probe in
// probe order, and a batched inclusion proof binding every probed
// entry to the log root.
type SearchProof struct {
	Pos       uint64       `json:"pos"`
	Steps     []*ProofStep `json:"steps"`
	Inclusion [][]byte     `json:"inclusion,omitempty"`
}

// A MonitorKey names a search key a client monitors, along with the
// ascending log positions it has already verified to hold versions of
// that key.
type MonitorKey struct {
	SearchKey []byte   `json:"search_key"`
	Entries   []uint64 `json:"entries"`
}

// A MonitorProof carries one ProofStep per checkpoint position that
// must be checked to extend a monitored entry's verification to the
// current tree size. The matching inclusion proof is shared across
// all monitored keys of a request.
type MonitorProof struct {
	Steps []*ProofStep `json:"steps"`
}

// A SearchRequest asks the directory for a specific version of a key,
// or for the latest version when Version is nil.
type SearchRequest struct {
	SearchKey   []byte                 `json:"search_key"`
	Version     *uint32                `json:"version,omitempty"`
	Consistency *ConsistencyParameters `json:"consistency,omitempty"`
}

// A MonitorRequest asks the directory to prove that the monitored
// keys' verified positions remain correctly chained up to the current
// tree size. All contact keys in one request must belong to the same
// logical owner. The owned-keys list is a deprecated duplicate of the
// contact-keys list retained only so old senders still parse.
type MonitorRequest struct {
	ContactKeys []*MonitorKey          `json:"contact_keys"`
	OwnedKeys   []*MonitorKey          `json:"owned_keys,omitempty"`
	Consistency *ConsistencyParameters `json:"consistency,omitempty"`
}

// An AppendRequest is sent by the write path to bind the next version
// of a key to a value.
type AppendRequest struct {
	SearchKey   []byte                 `json:"search_key"`
	Value       []byte                 `json:"value"`
	Consistency *ConsistencyParameters `json:"consistency,omitempty"`
}

// An AuditRequest is sent by the auditor to fetch the log entries
// starting at position Start, at most Limit at a time.
type AuditRequest struct {
	Start uint64 `json:"start"`
	Limit uint64 `json:"limit"`
}

// An AuditorHeadRequest is sent by the auditor to hand the directory
// its most recent signed tree head for redistribution to clients.
type AuditorHeadRequest struct {
	TreeHead *TreeHead `json:"tree_head"`
}

// A Response message indicates the result of a request with an
// appropriate error code, and carries the proofs the directory or
// auditor must return as part of its response.
type Response struct {
	Error             ErrorCode
	DirectoryResponse `json:",omitempty"`
}

// A DirectoryResponse is the proof-carrying part of a directory's or
// auditor's response.
type DirectoryResponse interface{}

// A SearchResponse is returned upon a SearchRequest: the current tree
// head, the VRF proof tying the search key to its private index, the
// search proof itself, and, for a found version, the committed value
// with the opening needed to check it. A ReqNotFound response carries
// the same proof material minus the value, proving absence.
type SearchResponse struct {
	FullTreeHead *FullTreeHead `json:"full_tree_head"`
	VrfProof     []byte        `json:"vrf_proof"`
	Search       *SearchProof  `json:"search"`
	Opening      []byte        `json:"opening,omitempty"`
	Value        *UpdateValue  `json:"value,omitempty"`
}

// A MonitorResponse is returned upon a MonitorRequest: one
// MonitorProof per contact key in request order, and a single
// inclusion proof shared by all their steps. The owned-proofs list
// mirrors the deprecated owned-keys request field and is never
// populated.
type MonitorResponse struct {
	FullTreeHead  *FullTreeHead   `json:"full_tree_head"`
	ContactProofs []*MonitorProof `json:"contact_proofs"`
	OwnedProofs   []*MonitorProof `json:"owned_proofs,omitempty"`
	Inclusion     [][]byte        `json:"inclusion,omitempty"`
}

// An AppendResponse is returned upon an AppendRequest. It carries the
// same proof material as a successful search for the just-appended
// version, so the write path verifies its update with the ordinary
// search checks against the value it submitted.
type AppendResponse struct {
	FullTreeHead *FullTreeHead `json:"full_tree_head"`
	VrfProof     []byte        `json:"vrf_proof"`
	Search       *SearchProof  `json:"search"`
	Opening      []byte        `json:"opening"`
}

// A LogEntry is one appended entry as handed to the auditor: its
// position, the prefix tree root snapshotted immediately after the
// entry's insert, and the entry's commitment.
type LogEntry struct {
	Position   uint64 `json:"position"`
	PrefixRoot []byte `json:"prefix_root"`
	Commitment []byte `json:"commitment"`
}

// An AuditResponse is returned upon an AuditRequest: the requested
// entries in position order, the directory's current signed tree
// head, and whether more entries remain past the returned range.
type AuditResponse struct {
	Entries  []*LogEntry `json:"entries"`
	TreeHead *TreeHead   `json:"tree_head"`
	More     bool        `json:"more,omitempty"`
}

// An ObservedHead is returned upon an AuditorHeadRequest and carries
// the directory's latest signed tree head.
type ObservedHead struct {
	TreeHead *TreeHead `json:"tree_head"`
}

var _ DirectoryResponse = (*SearchResponse)(nil)
var _ DirectoryResponse = (*MonitorResponse)(nil)
var _ DirectoryResponse = (*AppendResponse)(nil)
var _ DirectoryResponse = (*AuditResponse)(nil)
var _ DirectoryResponse = (*ObservedHead)(nil)

// NewErrorResponse creates a new response message indicating the
// error that occurred while a directory or an auditor was processing
// a request.
func NewErrorResponse(e ErrorCode) *Response {
	return &Response{Error: e}
}

// NewSearchProofResponse creates the response message a directory
// sends upon a SearchRequest, and returns a Response containing a
// SearchResponse struct. directory.Search() passes the proof material
// and an error code e according to the result of the search: opening
// and value are set for a found version and nil for a ReqNotFound
// absence proof.
func NewSearchProofResponse(fth *FullTreeHead, vrfProof []byte,
	search *SearchProof, opening []byte, value *UpdateValue,
	e ErrorCode) (*Response, ErrorCode) {
	return &Response{
		Error: e,
		DirectoryResponse: &SearchResponse{
			FullTreeHead: fth,
			VrfProof:     vrfProof,
			Search:       search,
			Opening:      opening,
			Value:        value,
		},
	}, e
}

// NewMonitorProofResponse creates the response message a directory
// sends upon a MonitorRequest, and returns a Response containing a
// MonitorResponse struct. directory.Monitor() passes one proof per
// requested contact key and the shared inclusion proof over all their
// checkpoint positions.
func NewMonitorProofResponse(fth *FullTreeHead, proofs []*MonitorProof,
	inclusion [][]byte) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &MonitorResponse{
			FullTreeHead:  fth,
			ContactProofs: proofs,
			Inclusion:     inclusion,
		},
	}, ReqSuccess
}

// NewAppendProofResponse creates the response message a directory
// sends upon an AppendRequest, and returns a Response containing an
// AppendResponse struct with the search proof for the new version.
func NewAppendProofResponse(fth *FullTreeHead, vrfProof []byte,
	search *SearchProof, opening []byte) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &AppendResponse{
			FullTreeHead: fth,
			VrfProof:     vrfProof,
			Search:       search,
			Opening:      opening,
		},
	}, ReqSuccess
}

// NewAuditRangeResponse creates the response message a directory
// sends upon an AuditRequest, and returns a Response containing an
// AuditResponse struct with the requested run of log entries.
func NewAuditRangeResponse(entries []*LogEntry, head *TreeHead,
	more bool) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &AuditResponse{
			Entries:  entries,
			TreeHead: head,
			More:     more,
		},
	}, ReqSuccess
}

// NewObservedHeadResponse creates the response message a directory
// sends upon an AuditorHeadRequest, and returns a Response containing
// an ObservedHead struct with the directory's latest tree head.
func NewObservedHeadResponse(head *TreeHead) (*Response, ErrorCode) {
	return &Response{
		Error: ReqSuccess,
		DirectoryResponse: &ObservedHead{
			TreeHead: head,
		},
	}, ReqSuccess
}

// Validate checks that a response's error code and payload fit
// together: fatal codes carry no payload, and every proof-bearing
// payload carries the pieces its verifier will dereference.
func (msg *Response) Validate() error {
	if Errors[msg.Error] {
		return msg.Error
	}
	if msg.DirectoryResponse == nil {
		// request-scoped failures carry their code and no payload
		if ErrorResponses[msg.Error] {
			return msg.Error
		}
		return ErrMalformedDirectoryMessage
	}
	switch df := msg.DirectoryResponse.(type) {
	case *SearchResponse:
		if df.FullTreeHead == nil || df.FullTreeHead.TreeHead == nil ||
			df.Search == nil || len(df.VrfProof) == 0 {
			return ErrMalformedDirectoryMessage
		}
	case *MonitorResponse:
		if df.FullTreeHead == nil || df.FullTreeHead.TreeHead == nil {
			return ErrMalformedDirectoryMessage
		}
	case *AppendResponse:
		if df.FullTreeHead == nil || df.FullTreeHead.TreeHead == nil ||
			df.Search == nil || len(df.VrfProof) == 0 {
			return ErrMalformedDirectoryMessage
		}
	case *AuditResponse:
		if df.TreeHead == nil {
			return ErrMalformedDirectoryMessage
		}
	case *ObservedHead:
		if df.TreeHead == nil {
			return ErrMalformedDirectoryMessage
		}
	default:
		return ErrMalformedDirectoryMessage
	}
	return nil
}

// GetValue returns the value extracted from a validated directory
// search response, nil when the response proves absence.
func (msg *Response) GetValue() ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	df, ok := msg.DirectoryResponse.(*SearchResponse)
	if !ok {
		return nil, ErrMalformedDirectoryMessage
	}
	if df.Value == nil {
		return nil, nil
	}
	return df.Value.Value, nil
}
