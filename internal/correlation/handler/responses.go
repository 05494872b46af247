package handler

import (
	"time"

	"proctor/internal/correlation"
)

// SessionResponse is one session row of the dashboard.
type SessionResponse struct {
	ID              correlation.SessionID     `json:"id"`
	ParticipantID   string                    `json:"participant_id,omitempty"`
	ParticipantName string                    `json:"participant_name,omitempty"`
	SubjectCode     string                    `json:"subject_code,omitempty"`
	SubjectName     string                    `json:"subject_name,omitempty"`
	Status          correlation.SessionStatus `json:"status"`
	StartedAt       *time.Time                `json:"started_at,omitempty"`
	CompletedAt     *time.Time                `json:"completed_at,omitempty"`
	Summary         correlation.Summary       `json:"summary"`
}

// SessionDetailResponse adds the attributed violations, most recent first.
type SessionDetailResponse struct {
	SessionResponse
	Violations []correlation.ViolationEvent `json:"violations"`
}

// ListSessionsResponse is the body of GET /admin/correlation/sessions.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// CorrelationResponse is the body of GET /admin/correlation. Sessions is keyed
// by session id; Order lists the ids most recently started first.
type CorrelationResponse struct {
	Sessions map[correlation.SessionID]SessionViolations `json:"sessions"`
	Order    []correlation.SessionID                     `json:"order"`
	Events   int                                         `json:"events"`
}

// SessionViolations pairs a session's violations with its summary.
type SessionViolations struct {
	Violations []correlation.ViolationEvent `json:"violations"`
	Summary    correlation.Summary          `json:"summary"`
}

// RefreshResponse is the body of POST /admin/correlation/refresh.
type RefreshResponse struct {
	Sessions    int       `json:"sessions"`
	Events      int       `json:"events"`
	Attributed  int       `json:"attributed"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

func toSessionResponse(report correlation.SessionReport) SessionResponse {
	s := report.Session
	return SessionResponse{
		ID:              s.ID,
		ParticipantID:   s.ParticipantID,
		ParticipantName: s.ParticipantName,
		SubjectCode:     s.SubjectCode,
		SubjectName:     s.SubjectName,
		Status:          s.Status,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		Summary:         report.Summary,
	}
}

// FromReports converts listed reports to the response body.
func FromReports(reports []correlation.SessionReport) *ListSessionsResponse {
	out := &ListSessionsResponse{
		Sessions: make([]SessionResponse, 0, len(reports)),
		Total:    len(reports),
	}
	for _, report := range reports {
		out.Sessions = append(out.Sessions, toSessionResponse(report))
	}
	return out
}

// FromReport converts a single session report to the response body.
func FromReport(report correlation.SessionReport) *SessionDetailResponse {
	violations := report.Violations
	if violations == nil {
		violations = []correlation.ViolationEvent{}
	}
	return &SessionDetailResponse{
		SessionResponse: toSessionResponse(report),
		Violations:      violations,
	}
}

// FromResult converts a correlation result to the response body. Every
// session in the result appears, with an empty list when nothing was
// attributed to it.
func FromResult(result *correlation.Result) *CorrelationResponse {
	out := &CorrelationResponse{
		Sessions: make(map[correlation.SessionID]SessionViolations, len(result.Sessions)),
		Order:    result.Order,
		Events:   result.EventCount,
	}
	if out.Order == nil {
		out.Order = []correlation.SessionID{}
	}
	for id := range result.Sessions {
		violations := result.BySession[id]
		if violations == nil {
			violations = []correlation.ViolationEvent{}
		}
		out.Sessions[id] = SessionViolations{
			Violations: violations,
			Summary:    result.Summaries[id],
		}
	}
	return out
}
