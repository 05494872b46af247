package correlation

import (
	"strings"
	"time"
)

// SessionID identifies one exam attempt.
type SessionID string

// EventID identifies one recorded violation.
type EventID string

// SessionStatus tracks an attempt from creation to submission. It only moves
// forward.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// ParseSessionStatus accepts the stored status strings. Unknown values map to
// SessionNotStarted.
func ParseSessionStatus(s string) SessionStatus {
	switch SessionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case SessionInProgress:
		return SessionInProgress
	case SessionCompleted:
		return SessionCompleted
	default:
		return SessionNotStarted
	}
}

// Severity is the detection service's rating of a violation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation type tags emitted by the detection service and the browser
// client. The set is open; these are the ones the dashboard knows about.
const (
	TypeLookingAway    = "looking_away"
	TypeMultiplePerson = "multiple_person"
	TypeNoPerson       = "no_person"
	TypePhoneDetected  = "phone_detected"
	TypeBookDetected   = "book_detected"
	TypeExcessiveNoise = "excessive_noise"
	TypeTabSwitch      = "tab_switch"
	TypeCopyPaste      = "copy_paste"
)

// Participant is a registered exam taker.
type Participant struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name"`
	AlternateID string `json:"alternate_id,omitempty" yaml:"alternate_id"`
}

// Subject carries the configured exam duration used to bound a session's
// time window when it has not been submitted.
type Subject struct {
	Code            string `json:"code" yaml:"code"`
	Name            string `json:"name,omitempty" yaml:"name"`
	DurationMinutes int    `json:"duration_minutes,omitempty" yaml:"duration_minutes"`
}

// Session is one participant's attempt at one subject. ParticipantName and
// AlternateID are denormalized copies that may be missing; they are
// backfilled from the participant list before matching.
type Session struct {
	ID              SessionID     `json:"id" yaml:"id"`
	ParticipantID   string        `json:"participant_id,omitempty" yaml:"participant_id"`
	ParticipantName string        `json:"participant_name,omitempty" yaml:"participant_name"`
	AlternateID     string        `json:"alternate_id,omitempty" yaml:"alternate_id"`
	SubjectCode     string        `json:"subject_code,omitempty" yaml:"subject_code"`
	SubjectName     string        `json:"subject_name,omitempty" yaml:"subject_name"`
	StartedAt       *time.Time    `json:"started_at,omitempty" yaml:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" yaml:"completed_at"`
	Status          SessionStatus `json:"status" yaml:"status"`
}

// HasStart reports whether the session has a usable start time.
func (s Session) HasStart() bool {
	return s.StartedAt != nil && !s.StartedAt.IsZero()
}

// Details is the loosely structured payload attached to a violation. Its
// identity fields duplicate the top-level ones and are used when those are
// null.
type Details struct {
	ParticipantName string         `json:"participant_name,omitempty" yaml:"participant_name"`
	ParticipantID   string         `json:"participant_id,omitempty" yaml:"participant_id"`
	AlternateID     string         `json:"alternate_id,omitempty" yaml:"alternate_id"`
	SubjectCode     string         `json:"subject_code,omitempty" yaml:"subject_code"`
	Message         string         `json:"message,omitempty" yaml:"message"`
	Extra           map[string]any `json:"extra,omitempty" yaml:"extra"`
}

// ViolationEvent is one detected infraction. It is written once by the
// detection service and never changed. SessionID may be empty or point at the
// wrong session.
type ViolationEvent struct {
	ID            EventID    `json:"id" yaml:"id"`
	SessionID     SessionID  `json:"session_id,omitempty" yaml:"session_id"`
	ParticipantID string     `json:"participant_id,omitempty" yaml:"participant_id"`
	SubjectCode   string     `json:"subject_code,omitempty" yaml:"subject_code"`
	Type          string     `json:"type" yaml:"type"`
	Severity      Severity   `json:"severity,omitempty" yaml:"severity"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty" yaml:"occurred_at"`
	EvidenceURL   string     `json:"evidence_url,omitempty" yaml:"evidence_url"`
	Details       Details    `json:"details" yaml:"details"`
}

// HasTime reports whether the event carries a usable timestamp.
func (e ViolationEvent) HasTime() bool {
	return e.OccurredAt != nil && !e.OccurredAt.IsZero()
}

// EffectiveParticipantID returns the top-level participant reference, falling
// back to the details payload.
func (e ViolationEvent) EffectiveParticipantID() string {
	return firstNonEmpty(e.ParticipantID, e.Details.ParticipantID)
}

// EffectiveSubjectCode returns the top-level subject code, falling back to the
// details payload.
func (e ViolationEvent) EffectiveSubjectCode() string {
	return firstNonEmpty(e.SubjectCode, e.Details.SubjectCode)
}

// Snapshot is everything one correlation pass reads. Sessions and Events are
// required; Participants and Subjects only enrich.
type Snapshot struct {
	Sessions     []Session
	Events       []ViolationEvent
	Participants []Participant
	Subjects     []Subject
}

// Summary is the per-session digest shown on the admin dashboard.
type Summary struct {
	ViolationCount     int            `json:"violation_count"`
	DistinctEventTypes []string       `json:"distinct_event_types"`
	CountsByType       map[string]int `json:"counts_by_type"`
	HighSeverityCount  int            `json:"high_severity_count"`
	FirstViolationAt   *time.Time     `json:"first_violation_at,omitempty"`
	LastViolationAt    *time.Time     `json:"last_violation_at,omitempty"`
}

// Result is the output of one correlation pass.
type Result struct {
	Sessions    map[SessionID]Session          `json:"sessions"`
	BySession   map[SessionID][]ViolationEvent `json:"by_session"`
	Summaries   map[SessionID]Summary          `json:"summaries"`
	Order       []SessionID                    `json:"order"`
	Diagnostics []Diagnostic                   `json:"diagnostics"`
	EventCount  int                            `json:"event_count"`
}

// Attributed returns the number of events assigned to some session.
func (r *Result) Attributed() int {
	n := 0
	for _, events := range r.BySession {
		n += len(events)
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
