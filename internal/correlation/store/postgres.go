package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"proctor/internal/correlation"
	"proctor/pkg/platform/sentinel"
	"proctor/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the correlation schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply correlation schema: %w", classify(err))
	}
	return nil
}

// Postgres reads the correlation inputs from PostgreSQL. Reads issued inside
// ReadSnapshot share one REPEATABLE READ transaction.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

type PostgresOption func(*Postgres)

func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(s *Postgres) {
		s.logger = logger
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Postgres) ReadSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := tx.ReadSnapshot(ctx, s.db, fn); err != nil {
		return classify(err)
	}
	return nil
}

const listSessionsQuery = `
SELECT id, participant_id, participant_name, alternate_id, subject_code, subject_name,
       started_at, completed_at, status
FROM exam_sessions
ORDER BY created_at, id`

func (s *Postgres) ListSessions(ctx context.Context) ([]correlation.Session, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, listSessionsQuery)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", classify(err))
	}
	defer rows.Close()

	var sessions []correlation.Session
	for rows.Next() {
		var (
			id                                          string
			participantID, participantName, alternateID sql.NullString
			subjectCode, subjectName                    sql.NullString
			startedAt, completedAt                      sql.NullTime
			status                                      string
		)
		if err := rows.Scan(&id, &participantID, &participantName, &alternateID, &subjectCode,
			&subjectName, &startedAt, &completedAt, &status); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, correlation.Session{
			ID:              correlation.SessionID(id),
			ParticipantID:   participantID.String,
			ParticipantName: participantName.String,
			AlternateID:     alternateID.String,
			SubjectCode:     subjectCode.String,
			SubjectName:     subjectName.String,
			StartedAt:       timePtr(startedAt),
			CompletedAt:     timePtr(completedAt),
			Status:          correlation.ParseSessionStatus(status),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", classify(err))
	}
	return sessions, nil
}

const listViolationsQuery = `
SELECT id, session_id, participant_id, subject_code, type, severity, occurred_at,
       evidence_url, details
FROM violations
ORDER BY created_at, id`

func (s *Postgres) ListViolations(ctx context.Context) ([]correlation.ViolationEvent, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx, listViolationsQuery)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", classify(err))
	}
	defer rows.Close()

	var events []correlation.ViolationEvent
	for rows.Next() {
		var (
			id, eventType                                   string
			sessionID, participantID, subjectCode, severity sql.NullString
			evidenceURL                                     sql.NullString
			occurredAt                                      sql.NullTime
			details                                         []byte
		)
		if err := rows.Scan(&id, &sessionID, &participantID, &subjectCode, &eventType, &severity,
			&occurredAt, &evidenceURL, &details); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		event := correlation.ViolationEvent{
			ID:            correlation.EventID(id),
			SessionID:     correlation.SessionID(sessionID.String),
			ParticipantID: participantID.String,
			SubjectCode:   subjectCode.String,
			Type:          eventType,
			Severity:      correlation.Severity(severity.String),
			OccurredAt:    timePtr(occurredAt),
			EvidenceURL:   evidenceURL.String,
		}
		var structured bool
		event.Details, structured = decodeDetails(details)
		if !structured {
			s.logger.WarnContext(ctx, "violation details are not a JSON object, kept as raw",
				"violation_id", id,
			)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list violations: %w", classify(err))
	}
	return events, nil
}

func (s *Postgres) ListParticipants(ctx context.Context) ([]correlation.Participant, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT id, display_name, alternate_id FROM participants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", classify(err))
	}
	defer rows.Close()

	var participants []correlation.Participant
	for rows.Next() {
		var (
			p           correlation.Participant
			alternateID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &alternateID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.AlternateID = alternateID.String
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", classify(err))
	}
	return participants, nil
}

func (s *Postgres) ListSubjects(ctx context.Context) ([]correlation.Subject, error) {
	rows, err := tx.QuerierFrom(ctx, s.db).QueryContext(ctx,
		`SELECT code, name, duration_minutes FROM subjects ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", classify(err))
	}
	defer rows.Close()

	var subjects []correlation.Subject
	for rows.Next() {
		var subject correlation.Subject
		if err := rows.Scan(&subject.Code, &subject.Name, &subject.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: %w", classify(err))
	}
	return subjects, nil
}

// decodeDetails parses the JSONB payload. Keys other than the identity fields
// and message are kept under Extra so nothing the detector sent is lost. A
// payload that is not a JSON object lands under Extra["raw"] and reports
// false; the event then relies on its top-level fields alone.
func decodeDetails(raw []byte) (correlation.Details, bool) {
	var details correlation.Details
	if len(raw) == 0 {
		return details, true
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		details.Extra = map[string]any{"raw": string(raw)}
		return details, false
	}
	if decoded == nil {
		return details, true
	}
	fields, ok := decoded.(map[string]any)
	if !ok {
		details.Extra = map[string]any{"raw": decoded}
		return details, false
	}
	take := func(key string) string {
		v, ok := fields[key]
		if !ok {
			return ""
		}
		delete(fields, key)
		switch typed := v.(type) {
		case string:
			return typed
		case nil:
			return ""
		default:
			return fmt.Sprint(typed)
		}
	}
	details.ParticipantName = take("participant_name")
	details.ParticipantID = take("participant_id")
	details.AlternateID = take("alternate_id")
	details.SubjectCode = take("subject_code")
	details.Message = take("message")
	if extra, ok := fields["extra"].(map[string]any); ok {
		delete(fields, "extra")
		for k, v := range extra {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		details.Extra = fields
	}
	return details, true
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// classify marks connectivity failures with sentinel.ErrUnavailable so the
// service can report them as a transient outage.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		// 08: connection exception, 57P: operator intervention (shutdown).
		if strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P") {
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
		}
	}
	return err
}
