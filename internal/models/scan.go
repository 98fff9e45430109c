package models

// ScanOutcome is the closed set of verdicts a validation attempt can produce.
// Every consumer (handlers, station feedback, reconciler) switches over these;
// there are no ad hoc outcome shapes.
type ScanOutcome string

const (
	OutcomeValid              ScanOutcome = "VALID"
	OutcomeAlreadyUsed        ScanOutcome = "ALREADY_USED"
	OutcomeEventMismatch      ScanOutcome = "EVENT_MISMATCH"
	OutcomeNotFound           ScanOutcome = "NOT_FOUND"
	OutcomeOfflineProvisional ScanOutcome = "OFFLINE_PROVISIONAL"
	OutcomeOfflineUnknown     ScanOutcome = "OFFLINE_UNKNOWN"
)

// Authoritative reports whether the outcome came from the ledger rather than
// a station's degraded-mode guess.
func (o ScanOutcome) Authoritative() bool {
	return o != OutcomeOfflineProvisional && o != OutcomeOfflineUnknown
}

// ScanResult is the transient value produced by one validation attempt. It is
// rendered to staff and then discarded, never persisted.
type ScanResult struct {
	Outcome ScanOutcome `json:"outcome"`
	Ticket  *Ticket     `json:"ticket,omitempty"`
	Message string      `json:"message"`
	// Flagged marks a check-in outside the configured window around the
	// event's start/end times. The verdict stands, staff get a visual cue.
	Flagged bool `json:"flagged,omitempty"`
}
