package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"proctor/internal/correlation"
	dErrors "proctor/pkg/domain-errors"
)

// ListSessionsRequest carries the query parameters of
// GET /admin/correlation/sessions.
type ListSessionsRequest struct {
	Subject     string
	Participant string
	Status      string
	Date        string
	Flagged     string

	// Parsed values (populated by Validate)
	parsedStatus  correlation.SessionStatus
	parsedFlagged bool
}

// Bind copies the recognized query parameters.
func (r *ListSessionsRequest) Bind(q url.Values) {
	r.Subject = strings.TrimSpace(q.Get("subject"))
	r.Participant = strings.TrimSpace(q.Get("participant"))
	r.Status = strings.TrimSpace(q.Get("status"))
	r.Date = strings.TrimSpace(q.Get("date"))
	r.Flagged = strings.TrimSpace(q.Get("flagged"))
}

// Validate checks and parses the parameters.
func (r *ListSessionsRequest) Validate() error {
	if len(r.Subject) > 64 || len(r.Participant) > 128 {
		return dErrors.New(dErrors.CodeValidation, "filter values are too long")
	}

	if r.Status != "" {
		status := correlation.SessionStatus(strings.ToLower(r.Status))
		switch status {
		case correlation.SessionNotStarted, correlation.SessionInProgress, correlation.SessionCompleted:
			r.parsedStatus = status
		default:
			return dErrors.New(dErrors.CodeValidation, "status must be one of not_started, in_progress, completed")
		}
	}

	if r.Date != "" {
		if _, err := time.Parse(time.DateOnly, r.Date); err != nil {
			return dErrors.New(dErrors.CodeValidation, "date must be formatted as YYYY-MM-DD")
		}
	}

	if r.Flagged != "" {
		flagged, err := strconv.ParseBool(r.Flagged)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "flagged must be a boolean")
		}
		r.parsedFlagged = flagged
	}
	return nil
}

// Filter returns the validated filter.
func (r *ListSessionsRequest) Filter() correlation.Filter {
	return correlation.Filter{
		SubjectCode:   r.Subject,
		ParticipantID: r.Participant,
		Status:        r.parsedStatus,
		Date:          r.Date,
		FlaggedOnly:   r.parsedFlagged,
	}
}
