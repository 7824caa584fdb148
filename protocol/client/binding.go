package client

// A Binding is the client's verified record of one search key: the
// private index the key's VRF proof resolved to, the latest version
// the client verified, the log position that version was inserted at,
// and the value whose commitment opened there.
type Binding struct {
	SearchKey []byte `json:"search_key"`
	Index     []byte `json:"index"`
	Version   uint32 `json:"version"`
	Position  uint64 `json:"position"`
	Value     []byte `json:"value"`
}
