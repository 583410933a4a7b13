package negotiation

// Outcome reports what a negotiation step did. None of the non-applied
// outcomes are errors.
type Outcome int

// Outcomes
const (
	// OutcomeSkipped: the offer preconditions were not met.
	OutcomeSkipped Outcome = iota
	// OutcomeOfferSent: an offer was created, applied and sent.
	OutcomeOfferSent
	// OutcomeAnswered: a remote offer was applied and answered.
	OutcomeAnswered
	// OutcomeApplied: a remote answer or candidate was applied.
	OutcomeApplied
	// OutcomeIgnored: a colliding remote offer was ignored by the impolite side.
	OutcomeIgnored
	// OutcomeDropped: a stale answer or candidate was discarded.
	OutcomeDropped
	// OutcomeQueued: a candidate was buffered until a remote description exists.
	OutcomeQueued
	// OutcomeYielded: a colliding remote offer reached the polite side. The
	// offer was not applied; it must be answered on a fresh connection.
	OutcomeYielded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeOfferSent:
		return "offer-sent"
	case OutcomeAnswered:
		return "answered"
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDropped:
		return "dropped"
	case OutcomeQueued:
		return "queued"
	case OutcomeYielded:
		return "yielded"
	default:
		return "unknown"
	}
}
