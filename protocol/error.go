// Defines the constants representing the types of errors
// that a directory or auditor may return to a client,
// and the results of a consistency check or a cryptographic
// verification that a client performs.

package protocol

// An ErrorCode implements the built-in error interface type.
type ErrorCode int

// Request outcomes reported by a directory. They describe the result
// of an operation the directory carried out; responses carrying them
// still include whatever proofs the outcome calls for.
const (
	ReqSuccess ErrorCode = iota + 100
	// ReqNotFound indicates that no log position satisfies the
	// requested key and version.
	ReqNotFound
	// ReqEmptyLog indicates a search against a log with no entries.
	ReqEmptyLog
	// ReqStalePosition indicates a monitoring request naming a log
	// position at or beyond the current tree size.
	ReqStalePosition
	// ReqInconsistentConsistency indicates request consistency
	// parameters naming a tree size greater than the current one.
	ReqInconsistentConsistency
)

// Errors that a directory, an auditor, or a message decoder may return
// in place of a proof.
const (
	ErrMalformedMessage ErrorCode = iota + 200
	ErrMalformedDirectoryMessage
	ErrMalformedAuditorMessage
	ErrDirectory
	ErrAuditor
)

// Verification results that a client may get when checking the proofs
// in a directory's or auditor's response.
const (
	CheckPassed ErrorCode = iota + 300
	CheckBadSignature
	CheckBadTimestamp
	CheckBadTreeHead
	CheckBadConsistency
	CheckBadAuditorHead
	CheckBadVRFProof
	CheckBadLadder
	CheckBadPrefixProof
	CheckBadCommitment
	CheckBadInclusion
	CheckVersionRegression
	// CheckBindingsDiffer indicates a version the client had already
	// verified resolving to a different value or log position.
	CheckBindingsDiffer
)

var (
	// Errors contains the codes that abort the handling of a message
	// outright: no proof in a message carrying one of these codes may
	// be relied on.
	Errors = map[ErrorCode]bool{
		ErrMalformedMessage:          true,
		ErrMalformedDirectoryMessage: true,
		ErrMalformedAuditorMessage:   true,
		ErrDirectory:                 true,
		ErrAuditor:                   true,
	}

	// ErrorResponses contains the codes a directory returns in a
	// bare error response, without any proof attached.
	ErrorResponses = map[ErrorCode]bool{
		ErrMalformedMessage:        true,
		ErrMalformedAuditorMessage: true,
		ErrDirectory:               true,
		ErrAuditor:                 true,
		ReqEmptyLog:                true,
		ReqStalePosition:           true,
		ReqInconsistentConsistency: true,
	}

	errorMessages = map[ErrorCode]string{
		ReqSuccess:                 "[keytrace] Successful request",
		ReqNotFound:                "[keytrace] Requested key version not found",
		ReqEmptyLog:                "[keytrace] Log has no entries",
		ReqStalePosition:           "[keytrace] Monitored position is beyond the tree size",
		ReqInconsistentConsistency: "[keytrace] Consistency parameters exceed the tree size",

		ErrMalformedMessage:          "[keytrace] Malformed client message",
		ErrMalformedDirectoryMessage: "[keytrace] Malformed directory message",
		ErrMalformedAuditorMessage:   "[keytrace] Malformed auditor message",
		ErrDirectory:                 "[keytrace] Directory error",
		ErrAuditor:                   "[keytrace] Auditor error",

		CheckPassed:            "[keytrace] All verifications passed",
		CheckBadSignature:      "[keytrace] Bad signature",
		CheckBadTimestamp:      "[keytrace] Tree head timestamp out of range",
		CheckBadTreeHead:       "[keytrace] Inconsistent tree head",
		CheckBadConsistency:    "[keytrace] Bad consistency proof",
		CheckBadAuditorHead:    "[keytrace] Bad auditor tree head",
		CheckBadVRFProof:       "[keytrace] Bad VRF proof",
		CheckBadLadder:         "[keytrace] Proof steps do not match the binary search",
		CheckBadPrefixProof:    "[keytrace] Bad prefix tree proof",
		CheckBadCommitment:     "[keytrace] Bad commitment opening",
		CheckBadInclusion:      "[keytrace] Bad inclusion proof",
		CheckVersionRegression: "[keytrace] Key version regressed",
		CheckBindingsDiffer:    "[keytrace] Key bindings differ",
	}
)

func (e ErrorCode) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return "[keytrace] Unknown error code"
}
