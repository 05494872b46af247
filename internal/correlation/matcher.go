package correlation

import (
	"strings"
	"time"

	pstrings "proctor/pkg/platform/strings"
)

// MatchOutcome is the result of testing one event against one session. Any
// value other than MatchOK names the first rule that rejected the pair.
type MatchOutcome int

const (
	MatchOK MatchOutcome = iota
	MatchNoIdentity
	MatchIdentityMismatch
	MatchSubjectMismatch
	MatchForeignSession
	MatchNoTimestamp
	MatchOutsideWindow
	MatchDateMismatch
)

func (m MatchOutcome) String() string {
	switch m {
	case MatchOK:
		return "ok"
	case MatchNoIdentity:
		return "no_identity"
	case MatchIdentityMismatch:
		return "identity_mismatch"
	case MatchSubjectMismatch:
		return "subject_mismatch"
	case MatchForeignSession:
		return "foreign_session"
	case MatchNoTimestamp:
		return "no_timestamp"
	case MatchOutsideWindow:
		return "outside_window"
	case MatchDateMismatch:
		return "date_mismatch"
	default:
		return "unknown"
	}
}

// Target is the session side of the match predicate. Name is already
// normalized and blank when it was a placeholder. StartDate is empty when the
// session has not started, which disables the time checks.
type Target struct {
	SessionID     string
	Name          string
	ParticipantID string
	AlternateID   string
	SubjectCode   string
	WindowStart   time.Time
	WindowEnd     time.Time
	StartDate     string
}

// Candidate is the event side of the match predicate. SessionRef is the
// resolved reference: empty when it was null or stale. NameAsID is the raw
// trimmed name, kept because clients sometimes write an identifier there.
type Candidate struct {
	SessionRef    string
	Name          string
	NameAsID      string
	ParticipantID string
	AlternateID   string
	SubjectCode   string
	At            time.Time
}

// HasIdentity reports whether the candidate carries anything that can tie it
// to a participant.
func (c Candidate) HasIdentity() bool {
	return c.Name != "" || c.ParticipantID != "" || c.AlternateID != "" || c.NameAsID != ""
}

// Match applies the fuzzy matching rules in order and returns the first
// failure, or MatchOK.
func Match(t Target, c Candidate) MatchOutcome {
	if !c.HasIdentity() {
		return MatchNoIdentity
	}
	if !identityMatches(t, c) {
		return MatchIdentityMismatch
	}
	if t.SubjectCode != "" && c.SubjectCode != "" && t.SubjectCode != c.SubjectCode {
		return MatchSubjectMismatch
	}
	if c.SessionRef != "" && c.SessionRef != t.SessionID {
		return MatchForeignSession
	}
	if t.StartDate == "" {
		return MatchOK
	}
	if c.At.IsZero() {
		return MatchNoTimestamp
	}
	if c.At.Before(t.WindowStart) || c.At.After(t.WindowEnd) {
		return MatchOutsideWindow
	}
	if dateOf(c.At) != t.StartDate {
		return MatchDateMismatch
	}
	return MatchOK
}

func identityMatches(t Target, c Candidate) bool {
	if c.Name != "" && c.Name == t.Name {
		return true
	}
	for _, id := range [...]string{c.ParticipantID, c.AlternateID, c.NameAsID} {
		if id == "" {
			continue
		}
		if id == t.ParticipantID || id == t.AlternateID {
			return true
		}
	}
	return false
}

// matcher turns records into predicate inputs using the pass's options,
// participant index and subject durations.
type matcher struct {
	opts         Options
	placeholders map[string]struct{}
	durations    map[string]time.Duration
}

func newMatcher(opts Options, subjects []Subject) *matcher {
	durations := make(map[string]time.Duration, len(subjects))
	for _, s := range subjects {
		code := strings.TrimSpace(s.Code)
		if code == "" || s.DurationMinutes <= 0 {
			continue
		}
		durations[code] = time.Duration(s.DurationMinutes) * time.Minute
	}
	return &matcher{
		opts:         opts,
		placeholders: opts.placeholderSet(),
		durations:    durations,
	}
}

// normalizeName returns the comparable form of name, or "" for placeholders.
func (m *matcher) normalizeName(name string) string {
	n := pstrings.NormalizeName(name)
	if _, ok := m.placeholders[n]; ok {
		return ""
	}
	return n
}

func (m *matcher) duration(subjectCode string) time.Duration {
	if d, ok := m.durations[subjectCode]; ok {
		return d
	}
	return m.opts.DefaultDuration
}

func (m *matcher) target(s Session) Target {
	t := Target{
		SessionID:     string(s.ID),
		Name:          m.normalizeName(s.ParticipantName),
		ParticipantID: strings.TrimSpace(s.ParticipantID),
		AlternateID:   strings.TrimSpace(s.AlternateID),
		SubjectCode:   strings.TrimSpace(s.SubjectCode),
	}
	if !s.HasStart() {
		return t
	}
	start := s.StartedAt.UTC()
	end := start.Add(m.duration(t.SubjectCode))
	if s.CompletedAt != nil && !s.CompletedAt.IsZero() && !s.CompletedAt.Before(start) {
		end = s.CompletedAt.UTC()
	}
	t.WindowStart = start.Add(-m.opts.WindowBuffer)
	t.WindowEnd = end.Add(m.opts.WindowBuffer)
	t.StartDate = dateOf(start)
	return t
}

// candidate builds the event side. ref is the already resolved session
// reference.
func (m *matcher) candidate(e ViolationEvent, ref SessionID) Candidate {
	c := Candidate{
		SessionRef:    string(ref),
		Name:          m.normalizeName(e.Details.ParticipantName),
		ParticipantID: e.EffectiveParticipantID(),
		AlternateID:   strings.TrimSpace(e.Details.AlternateID),
		SubjectCode:   e.EffectiveSubjectCode(),
	}
	if c.Name != "" {
		c.NameAsID = strings.TrimSpace(e.Details.ParticipantName)
	}
	if e.HasTime() {
		c.At = e.OccurredAt.UTC()
	}
	return c
}
