package directorykv

const (
	// EntryIdentifier is the domain separation for log entries.
	EntryIdentifier = 'E'
	// AuditorHeadIdentifier is the domain separation for the observed
	// auditor head.
	AuditorHeadIdentifier = 'A'
)
