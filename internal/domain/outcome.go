package domain

// OutcomeKind classifies the result of one pipeline run.
type OutcomeKind int

const (
	// OutcomeStored means a new article was persisted.
	OutcomeStored OutcomeKind = iota
	// OutcomeSkipped means every attempted index was missing, pending or
	// unreadable; the cursor moved past them.
	OutcomeSkipped
	// OutcomeFailed means content was found but could not be persisted;
	// the cursor stays on that index for the next run.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeStored:
		return "stored"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// CrawlOutcome reports what a single pipeline run did. Attempted is the
// number of external indexes tried (1-3); Article is set only for
// OutcomeStored; Err carries the cause for OutcomeFailed.
type CrawlOutcome struct {
	Kind      OutcomeKind
	Attempted int
	Article   *Article
	Err       error
}

// Stored reports whether the run persisted a new article.
func (o CrawlOutcome) Stored() bool {
	return o.Kind == OutcomeStored
}
