//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/suite"

	"proctor/internal/correlation"
	"proctor/internal/correlation/store"
	"proctor/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "violations", "exam_sessions", "participants", "subjects")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) exec(query string, args ...any) {
	_, err := s.postgres.DB.ExecContext(context.Background(), query, args...)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(store.Migrate(context.Background(), s.postgres.DB))
}

func (s *PostgresStoreSuite) TestListsMapColumns() {
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s.exec(`INSERT INTO participants (id, display_name, alternate_id) VALUES ('p1', 'Alice', 'ROLL-1')`)
	s.exec(`INSERT INTO subjects (code, name, duration_minutes) VALUES ('CS101', 'Programming', 120)`)
	s.exec(`INSERT INTO exam_sessions (id, participant_id, subject_code, started_at, status)
	        VALUES ('s1', 'p1', 'CS101', $1, 'IN_PROGRESS'), ('s2', NULL, NULL, NULL, 'bogus')`, started)
	s.exec(`INSERT INTO violations (id, session_id, type, severity, occurred_at, details)
	        VALUES ('e1', NULL, 'phone_detected', 'high', $1, '{"participant_name":"Alice","confidence":0.8}')`,
		started.Add(30*time.Minute))

	sessions, err := s.store.ListSessions(ctx)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(correlation.SessionInProgress, sessions[0].Status)
	s.Require().NotNil(sessions[0].StartedAt)
	s.True(started.Equal(*sessions[0].StartedAt))
	s.Nil(sessions[0].CompletedAt)
	s.Equal(correlation.SessionNotStarted, sessions[1].Status)
	s.Empty(sessions[1].ParticipantID)

	events, err := s.store.ListViolations(ctx)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Empty(events[0].SessionID)
	s.Equal("Alice", events[0].Details.ParticipantName)
	s.Equal(0.8, events[0].Details.Extra["confidence"])

	participants, err := s.store.ListParticipants(ctx)
	s.Require().NoError(err)
	s.Equal([]correlation.Participant{{ID: "p1", DisplayName: "Alice", AlternateID: "ROLL-1"}}, participants)

	subjects, err := s.store.ListSubjects(ctx)
	s.Require().NoError(err)
	s.Equal([]correlation.Subject{{Code: "CS101", Name: "Programming", DurationMinutes: 120}}, subjects)
}

func (s *PostgresStoreSuite) TestReadSnapshotIsConsistent() {
	ctx := context.Background()
	s.exec(`INSERT INTO violations (id, type) VALUES ('e1', 'tab_switch')`)

	err := s.store.ReadSnapshot(ctx, func(ctx context.Context) error {
		first, err := s.store.ListViolations(ctx)
		s.Require().NoError(err)

		s.exec(`INSERT INTO violations (id, type) VALUES ('e2', 'tab_switch')`)

		second, err := s.store.ListViolations(ctx)
		s.Require().NoError(err)
		s.Len(first, 1)
		s.Len(second, 1, "rows committed after the snapshot began stay invisible")
		return nil
	})
	s.Require().NoError(err)

	after, err := s.store.ListViolations(ctx)
	s.Require().NoError(err)
	s.Len(after, 2)
}

func (s *PostgresStoreSuite) TestNonObjectDetailsKeepTheRow() {
	s.exec(`INSERT INTO violations (id, session_id, type, details)
	        VALUES ('e1', 's1', 'tab_switch', '[]'), ('e2', 's1', 'phone_detected', '"phone seen"')`)

	events, err := s.store.ListViolations(context.Background())
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(correlation.SessionID("s1"), events[0].SessionID)
	s.Equal(map[string]any{"raw": []any{}}, events[0].Details.Extra)
	s.Equal(map[string]any{"raw": "phone seen"}, events[1].Details.Extra)
}

func (s *PostgresStoreSuite) TestEveryInputTableNotifies() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, s.postgres.DSN)
	s.Require().NoError(err)
	defer conn.Close(context.Background())
	_, err = conn.Exec(ctx, "LISTEN violations_changed")
	s.Require().NoError(err)

	writes := []struct {
		table string
		query string
	}{
		{"participants", `INSERT INTO participants (id, display_name) VALUES ('p1', 'Alice')`},
		{"subjects", `INSERT INTO subjects (code, name, duration_minutes) VALUES ('CS101', 'Programming', 120)`},
		{"subjects", `UPDATE subjects SET duration_minutes = 90 WHERE code = 'CS101'`},
		{"exam_sessions", `INSERT INTO exam_sessions (id, status) VALUES ('s1', 'not_started')`},
		{"violations", `INSERT INTO violations (id, type) VALUES ('e1', 'tab_switch')`},
	}
	for _, w := range writes {
		s.exec(w.query)
		note, err := conn.WaitForNotification(ctx)
		s.Require().NoError(err, w.query)
		s.Equal(w.table, note.Payload)
	}
}
