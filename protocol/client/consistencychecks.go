// Implements all consistency check operations done by a keytrace
// client on data received from a key directory. These include the
// proof verifications for search, append, and monitoring responses,
// and the version-regression checks that catch equivocation.

package client

import (
	"bytes"
	"sort"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/auditor"
)

// ConsistencyChecks stores the latest consistency check state of a
// keytrace client. This includes the latest verified tree head, all
// the verified key-to-value bindings of the client, and the
// directory's public keys.
//
// The client should create a new ConsistencyChecks instance only
// once, on first contact with a directory, and run every subsequent
// response from that directory through it.
type ConsistencyChecks struct {
	// the audit state stores the latest verified tree head as well as
	// the directory's public keys
	*auditor.AudState

	Bindings map[string]*Binding
}

// New creates an instance of ConsistencyChecks using a directory's
// public keys and the consistency state read from persistent storage.
// verified and bindings are nil on first contact with the directory;
// auditorKey may be nil for deployments without a pinned auditor.
func New(signKey sign.PublicKey, vrfKey vrf.PublicKey,
	auditorKey sign.PublicKey, verified *auditor.VerifiedState,
	bindings map[string]*Binding) *ConsistencyChecks {
	if bindings == nil {
		bindings = make(map[string]*Binding)
	}
	return &ConsistencyChecks{
		AudState: auditor.New(signKey, vrfKey, auditorKey, verified),
		Bindings: bindings,
	}
}

// HandleResponse verifies the directory's response for a request. It
// first checks the returned status code: a bare error response is
// surfaced as-is since it carries no proof to verify. The response's
// proofs are then run through the checks for the request's type. This
// will panic if it is called with a request whose type isn't a
// valid/known request type.
func (cc *ConsistencyChecks) HandleResponse(req *protocol.Request,
	msg *protocol.Response) error {
	if protocol.ErrorResponses[msg.Error] {
		return msg.Error
	}
	switch req.Type {
	case protocol.SearchType:
		return cc.CheckSearch(req.Request.(*protocol.SearchRequest), msg)
	case protocol.AppendType:
		return cc.CheckAppend(req.Request.(*protocol.AppendRequest), msg)
	case protocol.MonitorType:
		return cc.CheckMonitor(req.Request.(*protocol.MonitorRequest), msg)
	default:
		panic("[keytrace] Unknown request type")
	}
}

// SearchRequest builds the request looking up one version of a key,
// the latest when version is nil, carrying the client's consistency
// parameters.
func (cc *ConsistencyChecks) SearchRequest(key []byte, version *uint32) *protocol.Request {
	return &protocol.Request{
		Type: protocol.SearchType,
		Request: &protocol.SearchRequest{
			SearchKey:   key,
			Version:     version,
			Consistency: cc.ConsistencyParameters(),
		},
	}
}

// AppendRequest builds the request binding the next version of a key
// to a value, carrying the client's consistency parameters.
func (cc *ConsistencyChecks) AppendRequest(key, value []byte) *protocol.Request {
	return &protocol.Request{
		Type: protocol.AppendType,
		Request: &protocol.AppendRequest{
			SearchKey:   key,
			Value:       value,
			Consistency: cc.ConsistencyParameters(),
		},
	}
}

// MonitorRequest builds the request re-checking every binding the
// client holds, nil when there is nothing to monitor yet. The contact
// keys are listed in lexicographic order so the same state always
// produces the same request.
func (cc *ConsistencyChecks) MonitorRequest() *protocol.Request {
	if len(cc.Bindings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(cc.Bindings))
	for key := range cc.Bindings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	contacts := make([]*protocol.MonitorKey, len(keys))
	for i, key := range keys {
		binding := cc.Bindings[key]
		contacts[i] = &protocol.MonitorKey{
			SearchKey: binding.SearchKey,
			Entries:   []uint64{binding.Position},
		}
	}
	return &protocol.Request{
		Type: protocol.MonitorType,
		Request: &protocol.MonitorRequest{
			ContactKeys: contacts,
			Consistency: cc.ConsistencyParameters(),
		},
	}
}

// CheckSearch runs a directory's response through every search check:
// the VRF proof tying the key to its private index, the replayed
// binary search over the proof steps, the batched inclusion of every
// probed entry against the root the head signs, the head checks
// themselves, and for a found version the commitment opening. The
// verified head advances once the response proves authentic; the
// binding only advances with a fully verified value and may flag a
// regression afterwards.
// CheckSearch() is called on the response to a SearchRequest.
func (cc *ConsistencyChecks) CheckSearch(req *protocol.SearchRequest,
	msg *protocol.Response) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	df, ok := msg.DirectoryResponse.(*protocol.SearchResponse)
	if !ok {
		return protocol.ErrMalformedDirectoryMessage
	}
	switch msg.Error {
	case protocol.ReqSuccess:
		if df.Value == nil || len(df.Opening) == 0 {
			return protocol.ErrMalformedDirectoryMessage
		}
	case protocol.ReqNotFound:
		if df.Value != nil || len(df.Opening) != 0 {
			return protocol.ErrMalformedDirectoryMessage
		}
	default:
		return protocol.ErrMalformedDirectoryMessage
	}
	treeSize := df.FullTreeHead.TreeHead.TreeSize
	if treeSize == 0 {
		return protocol.ErrMalformedDirectoryMessage
	}

	index, err := cc.VRFPublicKey().ProofToHash(req.SearchKey, df.VrfProof)
	if err != nil {
		return protocol.CheckBadVRFProof
	}
	st, err := replaySearch(index, req.Version, treeSize, df.Search)
	if err != nil {
		return err
	}
	found := st.pos < treeSize
	if found != (msg.Error == protocol.ReqSuccess) {
		return protocol.CheckBadLadder
	}
	root, err := st.deriveRoot(treeSize, df.Search.Inclusion)
	if err != nil {
		return err
	}
	if err := cc.CheckFullTreeHead(df.FullTreeHead, root); err != nil {
		return err
	}
	if found {
		commitment := crypto.CommitValue(st.pos, df.Opening, df.Value.Value)
		if !bytes.Equal(commitment, st.commitments[st.pos]) {
			return protocol.CheckBadCommitment
		}
	}
	cc.Update(df.FullTreeHead.TreeHead, root)

	if !found {
		return cc.checkAbsent(req.SearchKey, req.Version)
	}
	return cc.updateBinding(req.SearchKey, index, st.target, st.pos,
		df.Value.Value, req.Version == nil)
}

// CheckAppend runs a directory's response through the search checks
// for the just-appended version: the replayed search must converge at
// the newest log position, and the commitment there must open to the
// value the client submitted. The appended version must strictly
// extend what the client has verified for the key.
// CheckAppend() is called on the response to an AppendRequest.
func (cc *ConsistencyChecks) CheckAppend(req *protocol.AppendRequest,
	msg *protocol.Response) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	df, ok := msg.DirectoryResponse.(*protocol.AppendResponse)
	if !ok || msg.Error != protocol.ReqSuccess {
		return protocol.ErrMalformedDirectoryMessage
	}
	treeSize := df.FullTreeHead.TreeHead.TreeSize
	if treeSize == 0 {
		return protocol.ErrMalformedDirectoryMessage
	}

	index, err := cc.VRFPublicKey().ProofToHash(req.SearchKey, df.VrfProof)
	if err != nil {
		return protocol.CheckBadVRFProof
	}
	st, err := replaySearch(index, nil, treeSize, df.Search)
	if err != nil {
		return err
	}
	// the appended version is the newest log entry
	if st.pos != treeSize-1 {
		return protocol.CheckBadLadder
	}
	root, err := st.deriveRoot(treeSize, df.Search.Inclusion)
	if err != nil {
		return err
	}
	if err := cc.CheckFullTreeHead(df.FullTreeHead, root); err != nil {
		return err
	}
	commitment := crypto.CommitValue(st.pos, df.Opening, req.Value)
	if !bytes.Equal(commitment, st.commitments[st.pos]) {
		return protocol.CheckBadCommitment
	}
	cc.Update(df.FullTreeHead.TreeHead, root)

	if binding, ok := cc.Bindings[string(req.SearchKey)]; ok &&
		st.target <= binding.Version {
		return protocol.CheckVersionRegression
	}
	return cc.updateBinding(req.SearchKey, index, st.target, st.pos,
		req.Value, true)
}

// CheckMonitor runs a directory's response through every monitoring
// check. Each contact key's proof walks the rightmost frontier of the
// log: the entries all keys derive at shared frontier positions must
// agree, the shared inclusion proof must tie the frontier to the root
// the head signs, and once the head proves authentic each monitored
// entry's checkpoint path is re-derived and its counters may never
// fall below the version verified for the key.
// CheckMonitor() is called on the response to a MonitorRequest.
func (cc *ConsistencyChecks) CheckMonitor(req *protocol.MonitorRequest,
	msg *protocol.Response) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	df, ok := msg.DirectoryResponse.(*protocol.MonitorResponse)
	if !ok || msg.Error != protocol.ReqSuccess {
		return protocol.ErrMalformedDirectoryMessage
	}
	if len(df.ContactProofs) != len(req.ContactKeys) {
		return protocol.ErrMalformedDirectoryMessage
	}
	treeSize := df.FullTreeHead.TreeHead.TreeSize
	if treeSize == 0 {
		return protocol.ErrMalformedDirectoryMessage
	}

	frontier := protocol.Frontier(treeSize)
	leaves := make([][]byte, len(frontier))
	for i, key := range req.ContactKeys {
		binding, ok := cc.Bindings[string(key.SearchKey)]
		if !ok {
			// monitoring is driven off the client's own bindings
			return protocol.ErrMalformedMessage
		}
		proof := df.ContactProofs[i]
		if len(proof.Steps) != len(frontier) {
			return protocol.ErrMalformedDirectoryMessage
		}
		for j, step := range proof.Steps {
			prefixRoot, err := step.Prefix.RootValue(binding.Index)
			if err != nil {
				return protocol.CheckBadPrefixProof
			}
			leaf := crypto.HashLogLeaf(frontier[j], prefixRoot, step.Commitment)
			switch {
			case leaves[j] == nil:
				leaves[j] = leaf
			case !bytes.Equal(leaves[j], leaf):
				// two keys disagree about the same log entry
				return protocol.CheckBadLadder
			}
		}
	}
	root, err := logtree.RootFromInclusion(treeSize, frontier, leaves, df.Inclusion)
	if err != nil {
		return protocol.CheckBadInclusion
	}
	if err := cc.CheckFullTreeHead(df.FullTreeHead, root); err != nil {
		return err
	}
	cc.Update(df.FullTreeHead.TreeHead, root)

	at := make(map[uint64]int, len(frontier))
	for j, pos := range frontier {
		at[pos] = j
	}
	for i, key := range req.ContactKeys {
		binding := cc.Bindings[string(key.SearchKey)]
		proof := df.ContactProofs[i]
		for _, pos := range key.Entries {
			if pos >= treeSize {
				return protocol.ErrMalformedMessage
			}
			floor := uint32(0)
			if pos == binding.Position {
				floor = binding.Version
			}
			for _, checkpoint := range protocol.MonitorPath(pos, treeSize) {
				j, ok := at[checkpoint]
				if !ok {
					return protocol.ErrMalformedDirectoryMessage
				}
				counter := proof.Steps[j].Prefix.Counter(binding.Index)
				if counter < floor {
					return protocol.CheckVersionRegression
				}
				floor = counter
			}
		}
		// the newest snapshot must still hold the verified version
		last := proof.Steps[len(proof.Steps)-1]
		if last.Prefix.Counter(binding.Index) < binding.Version {
			return protocol.CheckVersionRegression
		}
	}
	return nil
}

// checkAbsent reconciles a proven absence with the client's bindings:
// a version the client once verified may not disappear again.
func (cc *ConsistencyChecks) checkAbsent(searchKey []byte, version *uint32) error {
	binding, ok := cc.Bindings[string(searchKey)]
	if !ok {
		return nil
	}
	if version == nil || *version <= binding.Version {
		return protocol.CheckVersionRegression
	}
	return nil
}

// updateBinding commits a verified (version, position, value) triple
// for a search key. The first verified triple is trusted on first
// use. After that the latest version may never regress, and a version
// the client already verified must resolve to the identical value at
// the identical position.
func (cc *ConsistencyChecks) updateBinding(searchKey, index []byte,
	version uint32, position uint64, value []byte, latest bool) error {
	binding, ok := cc.Bindings[string(searchKey)]
	if !ok {
		cc.Bindings[string(searchKey)] = &Binding{
			SearchKey: append([]byte{}, searchKey...),
			Index:     index,
			Version:   version,
			Position:  position,
			Value:     value,
		}
		return nil
	}
	if latest && version < binding.Version {
		return protocol.CheckVersionRegression
	}
	if version == binding.Version &&
		(position != binding.Position || !bytes.Equal(value, binding.Value)) {
		return protocol.CheckBindingsDiffer
	}
	if version > binding.Version {
		binding.Version = version
		binding.Position = position
		binding.Value = value
	}
	return nil
}

// searchState is the outcome of replaying a search proof: the
// position the walk converged on, the version it searched for, and
// the counters, commitments, and derived log leaves of the probed
// positions.
type searchState struct {
	pos         uint64
	target      uint32
	positions   []uint64
	counters    map[uint64]uint32
	commitments map[uint64][]byte
	leafAt      map[uint64][]byte
}

// replaySearch re-runs the binary search the directory claims to have
// answered, consuming proof steps in their wire order. A log position
// consumes at most one step no matter how often the walk visits it,
// so a proof with missing, reordered, or leftover steps does not
// match the walk and is rejected.
func replaySearch(index []byte, version *uint32, treeSize uint64,
	search *protocol.SearchProof) (*searchState, error) {
	st := &searchState{
		counters:    make(map[uint64]uint32),
		commitments: make(map[uint64][]byte),
		leafAt:      make(map[uint64][]byte),
	}
	next := 0
	consume := func(pos uint64) (uint32, error) {
		if counter, ok := st.counters[pos]; ok {
			return counter, nil
		}
		if next >= len(search.Steps) {
			return 0, protocol.CheckBadLadder
		}
		step := search.Steps[next]
		next++
		prefixRoot, err := step.Prefix.RootValue(index)
		if err != nil {
			return 0, protocol.CheckBadPrefixProof
		}
		st.positions = append(st.positions, pos)
		st.counters[pos] = step.Prefix.Counter(index)
		st.commitments[pos] = step.Commitment
		st.leafAt[pos] = crypto.HashLogLeaf(pos, prefixRoot, step.Commitment)
		return st.counters[pos], nil
	}

	if version != nil {
		st.target = *version
	} else {
		counter, err := consume(treeSize - 1)
		if err != nil {
			return nil, err
		}
		if counter == 0 {
			// the key never appeared: the last snapshot alone proves it
			st.pos = treeSize
			if search.Pos != st.pos || next != len(search.Steps) {
				return nil, protocol.CheckBadLadder
			}
			return st, nil
		}
		st.target = counter
	}

	ladder := protocol.NewLadder(treeSize)
	for {
		mid, ok := ladder.Next()
		if !ok {
			break
		}
		counter, err := consume(mid)
		if err != nil {
			return nil, err
		}
		ladder.Advance(counter >= st.target)
	}
	st.pos = ladder.Pos()
	if search.Pos != st.pos || next != len(search.Steps) {
		return nil, protocol.CheckBadLadder
	}
	return st, nil
}

// deriveRoot folds the replayed steps' leaves and the batched
// inclusion proof into the log root the response's head must sign.
func (st *searchState) deriveRoot(treeSize uint64, inclusion [][]byte) ([]byte, error) {
	entries := protocol.SortedPositions(st.positions)
	leaves := make([][]byte, len(entries))
	for i, pos := range entries {
		leaves[i] = st.leafAt[pos]
	}
	root, err := logtree.RootFromInclusion(treeSize, entries, leaves, inclusion)
	if err != nil {
		return nil, protocol.CheckBadInclusion
	}
	return root, nil
}
