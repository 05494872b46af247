package correlation

import (
	"strings"
	"time"
)

// SessionReport is one session as the dashboard shows it.
type SessionReport struct {
	Session    Session          `json:"session"`
	Summary    Summary          `json:"summary"`
	Violations []ViolationEvent `json:"violations,omitempty"`
}

// Filter narrows ListReports. Zero fields match everything. Date is a UTC
// calendar date (YYYY-MM-DD) compared with the session start.
type Filter struct {
	SubjectCode   string
	ParticipantID string
	Status        SessionStatus
	Date          string
	FlaggedOnly   bool
}

func (f Filter) matches(s Session, sum Summary) bool {
	if f.SubjectCode != "" && s.SubjectCode != strings.TrimSpace(f.SubjectCode) {
		return false
	}
	if f.ParticipantID != "" && s.ParticipantID != strings.TrimSpace(f.ParticipantID) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Date != "" && (!s.HasStart() || dateOf(*s.StartedAt) != f.Date) {
		return false
	}
	if f.FlaggedOnly && sum.ViolationCount == 0 {
		return false
	}
	return true
}

// Report returns the full report for one session.
func (r *Result) Report(id SessionID) (SessionReport, bool) {
	s, ok := r.Sessions[id]
	if !ok {
		return SessionReport{}, false
	}
	return SessionReport{
		Session:    s,
		Summary:    r.Summaries[id],
		Violations: r.BySession[id],
	}, true
}

// Reports lists sessions matching f in stable order, without their
// violation lists.
func (r *Result) Reports(f Filter) []SessionReport {
	out := make([]SessionReport, 0, len(r.Order))
	for _, id := range r.Order {
		s := r.Sessions[id]
		sum := r.Summaries[id]
		if !f.matches(s, sum) {
			continue
		}
		out = append(out, SessionReport{Session: s, Summary: sum})
	}
	return out
}

// DiagnosticsReport explains what a pass could not attribute cleanly.
type DiagnosticsReport struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	Sessions     int                    `json:"sessions"`
	Events       int                    `json:"events"`
	Attributed   int                    `json:"attributed"`
	Unattributed int                    `json:"unattributed"`
	Counts       map[DiagnosticKind]int `json:"counts"`
	Diagnostics  []Diagnostic           `json:"diagnostics"`
}

// DiagnosticsReport summarizes r's diagnostics as of now.
func (r *Result) DiagnosticsReport(now time.Time) DiagnosticsReport {
	attributed := r.Attributed()
	diags := r.Diagnostics
	if diags == nil {
		diags = []Diagnostic{}
	}
	return DiagnosticsReport{
		GeneratedAt:  now,
		Sessions:     len(r.Sessions),
		Events:       r.EventCount,
		Attributed:   attributed,
		Unattributed: r.EventCount - attributed,
		Counts:       CountDiagnostics(r.Diagnostics),
		Diagnostics:  diags,
	}
}
