package correlation

// DiagnosticKind names a data-quality condition met during correlation. None
// of them fail the pass.
type DiagnosticKind string

const (
	// DiagMissingReference: the event has no usable identity, subject or
	// timestamp to correlate on and is excluded everywhere.
	DiagMissingReference DiagnosticKind = "missing_reference"
	// DiagStaleReference: the event's session reference is not in the
	// snapshot; it was treated as null.
	DiagStaleReference DiagnosticKind = "stale_reference"
	// DiagAmbiguousMatch: several sessions claimed the event; the tie-break
	// picked one.
	DiagAmbiguousMatch DiagnosticKind = "ambiguous_match"
	// DiagUnmatched: no session claimed the event.
	DiagUnmatched DiagnosticKind = "unmatched"
	// DiagMissingID: the event has no id and cannot be deduplicated.
	DiagMissingID DiagnosticKind = "missing_id"
	// DiagDuplicateID: a later row repeated an event id and was dropped.
	DiagDuplicateID DiagnosticKind = "duplicate_id"
)

// Diagnostic records why an event ended up where it did.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	EventID    EventID        `json:"event_id,omitempty"`
	SessionID  SessionID      `json:"session_id,omitempty"`
	Candidates []SessionID    `json:"candidates,omitempty"`
}

// CountDiagnostics tallies diagnostics by kind.
func CountDiagnostics(diags []Diagnostic) map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, d := range diags {
		counts[d.Kind]++
	}
	return counts
}
