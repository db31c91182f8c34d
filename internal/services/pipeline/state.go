package pipeline

// State is a node of the per-ticker state machine:
//
//	START -> FETCHED -> DOC_KNOWN_PROCESSED -> REUSED ----> PERSISTED
//	                 \                      \
//	                  -> DOC_NEW_OR_UNPROCESSED -> EXTRACTED -> PERSISTED
//
// DOC_KNOWN_PROCESSED falls through to DOC_NEW_OR_UNPROCESSED when no prior
// signal can be reused. DOC_NEW_OR_UNPROCESSED goes straight to PERSISTED when
// the run date already has a record, without calling the extractor.
type State string

const (
	StateStart               State = "START"
	StateFetched             State = "FETCHED"
	StateDocKnownProcessed   State = "DOC_KNOWN_PROCESSED"
	StateDocNewOrUnprocessed State = "DOC_NEW_OR_UNPROCESSED"
	StateReused              State = "REUSED"
	StateExtracted           State = "EXTRACTED"
	StatePersisted           State = "PERSISTED"
)

// stepResult is what every step returns: the state to enter next
type stepResult struct {
	next State
}

func goTo(next State) (stepResult, error) {
	return stepResult{next: next}, nil
}
