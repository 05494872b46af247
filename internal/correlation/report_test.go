package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportFixture(t *testing.T) *Result {
	t.Helper()
	result, err := NewEngine(DefaultOptions()).Correlate(Snapshot{
		Sessions: []Session{
			{ID: "s1", ParticipantID: "p1", ParticipantName: "Alice", SubjectCode: "CS101", StartedAt: at(t, "2024-03-01T09:00"), Status: SessionCompleted},
			{ID: "s2", ParticipantID: "p2", ParticipantName: "Bob", SubjectCode: "CS101", StartedAt: at(t, "2024-03-01T09:00"), Status: SessionInProgress},
			{ID: "s3", ParticipantID: "p1", ParticipantName: "Alice", SubjectCode: "MA201", StartedAt: at(t, "2024-03-02T13:00"), Status: SessionCompleted},
		},
		Events: []ViolationEvent{
			{ID: "e1", SessionID: "s1", Type: TypeLookingAway, OccurredAt: at(t, "2024-03-01T09:05")},
			{ID: "e2", SubjectCode: "MA201", Type: TypeTabSwitch, OccurredAt: at(t, "2024-03-02T13:10"), Details: Details{ParticipantName: "alice"}},
			{ID: "e3", Type: TypeNoPerson, Details: Details{ParticipantName: "Unknown Student"}},
		},
	})
	require.NoError(t, err)
	return result
}

func TestResultReports(t *testing.T) {
	result := reportFixture(t)

	tests := []struct {
		name   string
		filter Filter
		want   []SessionID
	}{
		{"all in stable order", Filter{}, []SessionID{"s3", "s1", "s2"}},
		{"by subject", Filter{SubjectCode: "CS101"}, []SessionID{"s1", "s2"}},
		{"by participant", Filter{ParticipantID: "p1"}, []SessionID{"s3", "s1"}},
		{"by status", Filter{Status: SessionInProgress}, []SessionID{"s2"}},
		{"by date", Filter{Date: "2024-03-02"}, []SessionID{"s3"}},
		{"flagged only", Filter{FlaggedOnly: true}, []SessionID{"s3", "s1"}},
		{"nothing matches", Filter{SubjectCode: "PH101"}, []SessionID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := result.Reports(tt.filter)
			ids := make([]SessionID, 0, len(reports))
			for _, r := range reports {
				ids = append(ids, r.Session.ID)
				assert.Nil(t, r.Violations, "list view omits violations")
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestResultReport(t *testing.T) {
	result := reportFixture(t)

	report, ok := result.Report("s3")
	require.True(t, ok)
	assert.Equal(t, []EventID{"e2"}, eventIDs(report.Violations))
	assert.Equal(t, 1, report.Summary.ViolationCount)
	assert.Equal(t, []string{TypeTabSwitch}, report.Summary.DistinctEventTypes)

	_, ok = result.Report("missing")
	assert.False(t, ok)
}

func TestResultDiagnosticsReport(t *testing.T) {
	result := reportFixture(t)
	now := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)

	report := result.DiagnosticsReport(now)
	assert.Equal(t, now, report.GeneratedAt)
	assert.Equal(t, 3, report.Sessions)
	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 2, report.Attributed)
	assert.Equal(t, 1, report.Unattributed)
	assert.Equal(t, 1, report.Counts[DiagMissingReference])
}
