// This module implements the transparency log a key distribution
// server maintains.
// A directory is a publicly auditable, tamper-evident, privacy-preserving
// data structure that logs every version of every key under VRF-derived
// indices. It supports appends, latest-version and past-version
// searches, monitoring of previously verified entries, and serving the
// raw log to auditors.

package directory

import (
	"time"

	"github.com/keytrace/keytrace-go/crypto"
	"github.com/keytrace/keytrace-go/crypto/sign"
	"github.com/keytrace/keytrace-go/crypto/vrf"
	"github.com/keytrace/keytrace-go/logtree"
	"github.com/keytrace/keytrace-go/prefixtree"
	"github.com/keytrace/keytrace-go/protocol"
)

// maxAuditEntries caps how many log entries a single audit response
// carries; longer ranges are paginated via AuditResponse.More.
const maxAuditEntries = 1000

// A Directory maintains the underlying pair of authenticated trees:
// the append-only log tree over all updates and the prefix tree
// mapping VRF indices to version counters, one snapshot per update.
//
// A Directory performs no locking. The log is single-writer by
// construction, so the owner serializes Append and Update against the
// read operations (the server does this with one RWMutex).
type Directory struct {
	prefix     *prefixtree.Tree
	log        *logtree.Tree
	vrfKey     vrf.PrivateKey
	signKey    sign.PrivateKey
	auditorKey sign.PublicKey
	configID   []byte

	entries     []*entry
	head        *protocol.TreeHead
	auditorHead *protocol.TreeHead
}

// entry is the served state of one log position.
type entry struct {
	prefixRoot []byte
	commitment []byte
	opening    []byte
	value      []byte
}

// A StoredEntry is the persisted form of one append: replaying stored
// entries in log order through Restore reproduces the exact same trees,
// commitments and proofs, so only the inputs need to be kept on disk.
type StoredEntry struct {
	SearchKey []byte `json:"search_key"`
	Value     []byte `json:"value"`
	Opening   []byte `json:"opening"`
}

// New constructs a new Directory from the server's long-term key
// material.
//
// vrfKey derives the private prefix tree indices, signKey signs tree
// heads. auditorKey is the public key of the configured third-party
// auditor and may be nil when the deployment runs without one; without
// it the directory rejects auditor heads and never attaches one to its
// responses.
func New(vrfKey vrf.PrivateKey, signKey sign.PrivateKey,
	auditorKey sign.PublicKey) *Directory {
	vrfPublicKey, ok := vrfKey.Public()
	if !ok {
		panic(vrf.ErrGetPubKey)
	}
	signPublicKey, ok := signKey.Public()
	if !ok {
		panic("[keytrace] Couldn't get the public signing key")
	}
	return &Directory{
		prefix:     prefixtree.NewTree(),
		log:        logtree.NewTree(),
		vrfKey:     vrfKey,
		signKey:    signKey,
		auditorKey: auditorKey,
		configID:   protocol.ConfigID(signPublicKey, vrfPublicKey),
	}
}

// Update re-signs the latest tree head with a fresh timestamp. The
// server calls this on its head refresh timer so clients see a recent
// head even when no appends arrive.
func (d *Directory) Update() {
	if d.log.Size() > 0 {
		d.signHead()
	}
}

// Size returns the number of log entries.
func (d *Directory) Size() uint64 {
	return d.log.Size()
}

// ConfigID returns the digest identifying this directory's key
// configuration.
func (d *Directory) ConfigID() []byte {
	return d.configID
}

// LatestTreeHead returns the latest signed tree head, nil while the
// log is empty.
func (d *Directory) LatestTreeHead() *protocol.TreeHead {
	return d.head
}

// Restore replays persisted entries, in log order, into an empty
// directory. Commitments reuse the stored openings, so the rebuilt
// trees reproduce the originally served roots bit for bit.
func (d *Directory) Restore(entries []*StoredEntry) error {
	for _, ent := range entries {
		index := d.vrfKey.Compute(ent.SearchKey)
		if err := d.insert(index, ent.Value, ent.Opening); err != nil {
			return err
		}
	}
	return nil
}

// Append inserts the key-to-value update contained in an AppendRequest
// req received from a client into this Directory, and returns a tuple
// of the form (response, error).
// The response (which also includes the error code) is supposed to
// be sent back to the client. The returned error is used by the key
// server for logging purposes.
//
// A request without a search key or without a value is considered
// malformed, and causes Append() to return a
// message.NewErrorResponse(ErrMalformedMessage) tuple.
// Append() derives the key's private index, bumps its version counter
// in a new prefix tree snapshot and appends the new entry to the log;
// the two tree updates happen back to back under the owner's write
// lock and the new head is only signed after both, so no reader
// observes a half-applied entry. On success it returns a
// message.NewAppendProofResponse(fth, vrfProof, search, opening) tuple
// whose search proof is exactly what a lookup of the just-written
// version would return, letting the caller verify its own write.
// If Append() encounters an internal error at any point, it returns
// a message.NewErrorResponse(ErrDirectory) tuple.
func (d *Directory) Append(req *protocol.AppendRequest) (
	*protocol.Response, error) {
	// make sure the request is well-formed
	if len(req.SearchKey) <= 0 || len(req.Value) <= 0 {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage),
			protocol.ErrMalformedMessage
	}
	// reject bad consistency parameters before touching the trees
	if e := d.checkConsistencyParams(req.Consistency); e != protocol.ReqSuccess {
		return protocol.NewErrorResponse(e), e
	}

	index, vrfProof := d.vrfKey.Prove(req.SearchKey)
	if err := d.insert(index, req.Value, nil); err != nil {
		return protocol.NewErrorResponse(protocol.ErrDirectory), protocol.ErrDirectory
	}

	fth, e := d.fullTreeHead(req.Consistency)
	if e != protocol.ReqSuccess {
		return protocol.NewErrorResponse(e), e
	}
	search, opening, _, e := d.search(index, nil)
	if e != protocol.ReqSuccess {
		return protocol.NewErrorResponse(protocol.ErrDirectory), protocol.ErrDirectory
	}
	return protocol.NewAppendProofResponse(fth, vrfProof, search, opening)
}

// Search looks up one version of the search key indicated in the
// SearchRequest req received from a client against the latest log
// snapshot of this Directory, and returns a tuple of the form
// (response, error).
// The response (which also includes the error code) is supposed to
// be sent back to the client. The returned error is used by the key
// server for logging purposes.
//
// A request without a search key or asking for version 0 is considered
// malformed, and causes Search() to return a
// message.NewErrorResponse(ErrMalformedMessage) tuple. While the log
// is empty Search() returns a message.NewErrorResponse(ReqEmptyLog)
// tuple, and when a consistency parameter names a size beyond the
// current log a message.NewErrorResponse(ReqInconsistentConsistency)
// tuple.
// Otherwise Search() assembles the binary-search ladder for the
// requested version (the latest version when req.Version is nil,
// resolved from the last entry's snapshot) and returns a
// message.NewSearchProofResponse(fth, vrfProof, search, opening,
// value, ReqSuccess) tuple when a position reaching the version
// exists, or the same tuple with a nil opening and value and
// ReqNotFound when the ladder proves no position does.
// If Search() encounters an internal error at any point, it returns
// a message.NewErrorResponse(ErrDirectory) tuple.
func (d *Directory) Search(req *protocol.SearchRequest) (
	*protocol.Response, error) {
	// make sure the request is well-formed
	if len(req.SearchKey) <= 0 || (req.Version != nil && *req.Version == 0) {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage),
			protocol.ErrMalformedMessage
	}
	if d.log.Size() == 0 {
		return protocol.NewErrorResponse(protocol.ReqEmptyLog), protocol.ReqEmptyLog
	}

	fth, e := d.fullTreeHead(req.Consistency)
	if e != protocol.ReqSuccess {
		return protocol.NewErrorResponse(e), e
	}
	index, vrfProof := d.vrfKey.Prove(req.SearchKey)
	search, opening, value, e := d.search(index, req.Version)
	if e != protocol.ReqSuccess && e != protocol.ReqNotFound {
		return protocol.NewErrorResponse(e), e
	}
	return protocol.NewSearchProofResponse(fth, vrfProof, search, opening, value, e)
}

// Monitor gets the directory proofs for the contact keys indicated in
// the MonitorRequest req received from a client, and returns a tuple
// of the form (response, error).
// The response (which also includes the error code) is supposed to
// be sent back to the client. The returned error is used by the key
// server for logging purposes.
//
// A request without contact keys, with a contact key missing its
// search key or verified entry positions, is considered malformed,
// and causes Monitor() to return a
// message.NewErrorResponse(ErrMalformedMessage) tuple. That all keys
// in one request belong to the same logical owner is enforced by the
// account layer in front of the directory, not here. While the log is
// empty Monitor() returns a message.NewErrorResponse(ReqEmptyLog)
// tuple, and when any entry position lies at or beyond the current
// log size a message.NewErrorResponse(ReqStalePosition) tuple.
// Monitor() returns a message.NewMonitorProofResponse(fth, proofs,
// inclusion) tuple. proofs holds one MonitorProof per contact key, in
// request order, whose steps walk the rightmost frontier of the log;
// the frontier subsumes the checkpoint walk of every verified entry,
// so one shared inclusion proof over the frontier positions serves
// all keys in the request. The deprecated OwnedKeys field is parsed
// but ignored.
// If Monitor() encounters an internal error at any point, it returns
// a message.NewErrorResponse(ErrDirectory) tuple.
func (d *Directory) Monitor(req *protocol.MonitorRequest) (
	*protocol.Response, error) {
	// make sure the request is well-formed
	if len(req.ContactKeys) == 0 {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage),
			protocol.ErrMalformedMessage
	}
	for _, key := range req.ContactKeys {
		if len(key.SearchKey) <= 0 || len(key.Entries) == 0 {
			return protocol.NewErrorResponse(protocol.ErrMalformedMessage),
				protocol.ErrMalformedMessage
		}
	}
	n := d.log.Size()
	if n == 0 {
		return protocol.NewErrorResponse(protocol.ReqEmptyLog), protocol.ReqEmptyLog
	}
	for _, key := range req.ContactKeys {
		for _, pos := range key.Entries {
			if pos >= n {
				return protocol.NewErrorResponse(protocol.ReqStalePosition),
					protocol.ReqStalePosition
			}
		}
	}

	fth, e := d.fullTreeHead(req.Consistency)
	if e != protocol.ReqSuccess {
		return protocol.NewErrorResponse(e), e
	}

	frontier := protocol.Frontier(n)
	proofs := make([]*protocol.MonitorProof, len(req.ContactKeys))
	for i, key := range req.ContactKeys {
		index := d.vrfKey.Compute(key.SearchKey)
		steps := make([]*protocol.ProofStep, len(frontier))
		for j, pos := range frontier {
			res, err := d.prefix.LookupAt(pos, index)
			if err != nil {
				return protocol.NewErrorResponse(protocol.ErrDirectory),
					protocol.ErrDirectory
			}
			steps[j] = &protocol.ProofStep{
				Prefix:     res,
				Commitment: d.entries[pos].commitment,
			}
		}
		proofs[i] = &protocol.MonitorProof{Steps: steps}
	}
	inclusion, err := d.log.InclusionProof(frontier, n)
	if err != nil {
		return protocol.NewErrorResponse(protocol.ErrDirectory), protocol.ErrDirectory
	}
	return protocol.NewMonitorProofResponse(fth, proofs, inclusion)
}

// Audit gets the run of raw log entries indicated in the AuditRequest
// req received from an auditor, and returns a tuple of the form
// (response, error).
// The response (which also includes the error code) is supposed to
// be sent back to the auditor. The returned error is used by the key
// server for logging purposes.
//
// A request with a zero limit is considered malformed, and causes
// Audit() to return a message.NewErrorResponse(ErrMalformedMessage)
// tuple. While the log is empty Audit() returns a
// message.NewErrorResponse(ReqEmptyLog) tuple, and when the start
// position lies at or beyond the current log size a
// message.NewErrorResponse(ReqStalePosition) tuple.
// Audit() returns a message.NewAuditRangeResponse(entries, head, more)
// tuple. entries holds up to req.Limit (capped at maxAuditEntries)
// consecutive log entries from req.Start, head is the latest signed
// tree head, and more reports whether entries remain past the range.
func (d *Directory) Audit(req *protocol.AuditRequest) (
	*protocol.Response, error) {
	// make sure the request is well-formed
	if req.Limit == 0 {
		return protocol.NewErrorResponse(protocol.ErrMalformedMessage),
			protocol.ErrMalformedMessage
	}
	n := d.log.Size()
	if n == 0 {
		return protocol.NewErrorResponse(protocol.ReqEmptyLog), protocol.ReqEmptyLog
	}
	if req.Start >= n {
		return protocol.NewErrorResponse(protocol.ReqStalePosition),
			protocol.ReqStalePosition
	}

	limit := req.Limit
	if limit > maxAuditEntries {
		limit = maxAuditEntries
	}
	end := req.Start + limit
	if end > n {
		end = n
	}
	entries := make([]*protocol.LogEntry, 0, end-req.Start)
	for pos := req.Start; pos < end; pos++ {
		ent := d.entries[pos]
		entries = append(entries, &protocol.LogEntry{
			Position:   pos,
			PrefixRoot: ent.prefixRoot,
			Commitment: ent.commitment,
		})
	}
	return protocol.NewAuditRangeResponse(entries, d.head, end < n)
}

// SetAuditorHead takes the freshly signed head an auditor pushed in an
// AuditorHeadRequest req, and returns a tuple of the form
// (response, error).
// The response (which also includes the error code) is supposed to
// be sent back to the auditor. The returned error is used by the key
// server for logging purposes.
//
// A request without a signed head is considered malformed, and causes
// SetAuditorHead() to return a
// message.NewErrorResponse(ErrMalformedAuditorMessage) tuple, as does
// a deployment without a configured auditor key. While the log is
// empty SetAuditorHead() returns a
// message.NewErrorResponse(ReqEmptyLog) tuple. A head naming a size
// beyond the current log returns a
// message.NewErrorResponse(ReqInconsistentConsistency) tuple, one
// older than the head already held a
// message.NewErrorResponse(ReqStalePosition) tuple, and one whose
// signature does not cover this directory's root at the named size a
// message.NewErrorResponse(ErrMalformedAuditorMessage) tuple.
// On success the head is retained for attachment to future responses
// and SetAuditorHead() returns a
// message.NewObservedHeadResponse(head) tuple carrying the
// directory's own latest head, which the auditor audits next.
func (d *Directory) SetAuditorHead(req *protocol.AuditorHeadRequest) (
	*protocol.Response, error) {
	// make sure the request is well-formed
	if req.TreeHead == nil || len(req.TreeHead.Signature) == 0 ||
		len(d.auditorKey) == 0 {
		return protocol.NewErrorResponse(protocol.ErrMalformedAuditorMessage),
			protocol.ErrMalformedAuditorMessage
	}
	n := d.log.Size()
	if n == 0 {
		return protocol.NewErrorResponse(protocol.ReqEmptyLog), protocol.ReqEmptyLog
	}
	if req.TreeHead.TreeSize == 0 || req.TreeHead.TreeSize > n {
		return protocol.NewErrorResponse(protocol.ReqInconsistentConsistency),
			protocol.ReqInconsistentConsistency
	}
	if d.auditorHead != nil && req.TreeHead.TreeSize < d.auditorHead.TreeSize {
		return protocol.NewErrorResponse(protocol.ReqStalePosition),
			protocol.ReqStalePosition
	}

	root, err := d.log.RootAt(req.TreeHead.TreeSize)
	if err != nil {
		return protocol.NewErrorResponse(protocol.ErrDirectory), protocol.ErrDirectory
	}
	if !req.TreeHead.VerifyAuditor(d.auditorKey, d.configID, root) {
		return protocol.NewErrorResponse(protocol.ErrMalformedAuditorMessage),
			protocol.ErrMalformedAuditorMessage
	}

	d.auditorHead = req.TreeHead
	return protocol.NewObservedHeadResponse(d.head)
}

// insert applies one update below the owner's write lock: a fresh
// prefix tree snapshot with the index's counter bumped, the matching
// log entry, and a newly signed head. A nil opening draws a fresh
// random one; Restore passes the persisted opening instead. A failed
// prefix insert leaves every structure untouched.
func (d *Directory) insert(index, value, opening []byte) error {
	pos := d.log.Size()
	var counter uint32
	if pos > 0 {
		res, err := d.prefix.LookupAt(pos-1, index)
		if err != nil {
			return err
		}
		counter = res.Counter(index)
	}

	var commitment []byte
	if opening == nil {
		commit, err := crypto.NewCommit(pos, value)
		if err != nil {
			return err
		}
		opening, commitment = commit.Opening, commit.Value
	} else {
		commitment = crypto.CommitValue(pos, opening, value)
	}

	prefixRoot, err := d.prefix.Insert(index, counter+1)
	if err != nil {
		return err
	}
	d.log.Append(crypto.HashLogLeaf(pos, prefixRoot, commitment))
	d.entries = append(d.entries, &entry{
		prefixRoot: prefixRoot,
		commitment: commitment,
		opening:    opening,
		value:      value,
	})
	d.signHead()
	return nil
}

func (d *Directory) signHead() {
	d.head = protocol.SignTreeHead(d.signKey, d.configID, d.log.Size(),
		time.Now().UnixMilli(), d.log.Root())
}

// search assembles the proof that the binary-search ladder for index
// converges at the first log position reaching the requested version,
// or that no position does. version nil asks for the latest version,
// resolved from a leading proof step against the last entry's
// snapshot. Every step position appears once, first occurrence order,
// and the positions are batched into one inclusion proof.
func (d *Directory) search(index []byte, version *uint32) (
	*protocol.SearchProof, []byte, *protocol.UpdateValue, protocol.ErrorCode) {
	n := d.log.Size()
	var steps []*protocol.ProofStep
	var positions []uint64
	emitted := make(map[uint64]bool)

	emit := func(pos uint64) (uint32, protocol.ErrorCode) {
		res, err := d.prefix.LookupAt(pos, index)
		if err != nil {
			return 0, protocol.ErrDirectory
		}
		if !emitted[pos] {
			emitted[pos] = true
			positions = append(positions, pos)
			steps = append(steps, &protocol.ProofStep{
				Prefix:     res,
				Commitment: d.entries[pos].commitment,
			})
		}
		return res.Counter(index), protocol.ReqSuccess
	}

	var target uint32
	if version != nil {
		target = *version
	} else {
		counter, e := emit(n - 1)
		if e != protocol.ReqSuccess {
			return nil, nil, nil, e
		}
		if counter == 0 {
			// the key never appeared: the last snapshot alone proves it
			search := &protocol.SearchProof{Pos: n, Steps: steps}
			if e := d.attachInclusion(search, positions); e != protocol.ReqSuccess {
				return nil, nil, nil, e
			}
			return search, nil, nil, protocol.ReqNotFound
		}
		target = counter
	}

	ladder := protocol.NewLadder(n)
	for {
		mid, ok := ladder.Next()
		if !ok {
			break
		}
		counter, e := emit(mid)
		if e != protocol.ReqSuccess {
			return nil, nil, nil, e
		}
		ladder.Advance(counter >= target)
	}

	pos := ladder.Pos()
	search := &protocol.SearchProof{Pos: pos, Steps: steps}
	if e := d.attachInclusion(search, positions); e != protocol.ReqSuccess {
		return nil, nil, nil, e
	}
	if pos == n {
		return search, nil, nil, protocol.ReqNotFound
	}
	ent := d.entries[pos]
	return search, ent.opening, &protocol.UpdateValue{Value: ent.value}, protocol.ReqSuccess
}

func (d *Directory) attachInclusion(search *protocol.SearchProof,
	positions []uint64) protocol.ErrorCode {
	proof, err := d.log.InclusionProof(protocol.SortedPositions(positions), d.log.Size())
	if err != nil {
		return protocol.ErrDirectory
	}
	search.Inclusion = proof
	return protocol.ReqSuccess
}

// fullTreeHead builds the head block of a response: the latest signed
// head, consistency proofs against the caller's last-seen and
// distinguished sizes, and the freshest auditor head with its bridge
// to the current root. Absent consistency parameters mean a first
// contact and produce no proofs.
func (d *Directory) fullTreeHead(params *protocol.ConsistencyParameters) (
	*protocol.FullTreeHead, protocol.ErrorCode) {
	n := d.log.Size()
	fth := &protocol.FullTreeHead{TreeHead: d.head}
	if params != nil {
		if params.Last != nil {
			proof, e := d.consistency(*params.Last, n)
			if e != protocol.ReqSuccess {
				return nil, e
			}
			fth.Consistency = proof
		}
		if params.Distinguished != nil {
			proof, e := d.consistency(*params.Distinguished, n)
			if e != protocol.ReqSuccess {
				return nil, e
			}
			fth.Distinguished = proof
		}
	}
	if d.auditorHead != nil {
		ath := &protocol.AuditorTreeHead{TreeHead: d.auditorHead}
		if d.auditorHead.TreeSize < n {
			root, err := d.log.RootAt(d.auditorHead.TreeSize)
			if err != nil {
				return nil, protocol.ErrDirectory
			}
			proof, err := d.log.ConsistencyProof(d.auditorHead.TreeSize, n)
			if err != nil {
				return nil, protocol.ErrDirectory
			}
			ath.RootValue, ath.Consistency = root, proof
		}
		fth.AuditorTreeHead = ath
	}
	return fth, protocol.ReqSuccess
}

func (d *Directory) consistency(m, n uint64) ([][]byte, protocol.ErrorCode) {
	// sizes the caller could never have verified are rejected, not clamped
	if m == 0 || m > n {
		return nil, protocol.ReqInconsistentConsistency
	}
	proof, err := d.log.ConsistencyProof(m, n)
	if err != nil {
		return nil, protocol.ErrDirectory
	}
	return proof, protocol.ReqSuccess
}

func (d *Directory) checkConsistencyParams(params *protocol.ConsistencyParameters) protocol.ErrorCode {
	if params == nil {
		return protocol.ReqSuccess
	}
	n := d.log.Size()
	if l := params.Last; l != nil && (*l == 0 || *l > n) {
		return protocol.ReqInconsistentConsistency
	}
	if di := params.Distinguished; di != nil && (*di == 0 || *di > n) {
		return protocol.ReqInconsistentConsistency
	}
	return protocol.ReqSuccess
}
