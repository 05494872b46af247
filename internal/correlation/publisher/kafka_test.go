package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"proctor/internal/correlation"
	"proctor/pkg/platform/circuit"
	"proctor/pkg/platform/sentinel"
)

type fakeProducer struct {
	batches [][]*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.batches = append(p.batches, rs)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newPublisher(p Producer, opts ...Option) *Kafka {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return now }),
	}, opts...)
	return NewKafka(p, "session-summaries", opts...)
}

func TestPublish_OneRecordPerSession(t *testing.T) {
	producer := &fakeProducer{}
	last := now.Add(-time.Hour)
	reports := []correlation.SessionReport{
		{
			Session: correlation.Session{ID: "s1", ParticipantID: "p1", SubjectCode: "CS101", Status: correlation.SessionCompleted},
			Summary: correlation.Summary{ViolationCount: 2, DistinctEventTypes: []string{"no_person", "tab_switch"}, HighSeverityCount: 1, LastViolationAt: &last},
		},
		{Session: correlation.Session{ID: "s2", Status: correlation.SessionNotStarted}},
	}

	require.NoError(t, newPublisher(producer).Publish(context.Background(), reports))
	require.Len(t, producer.batches, 1)
	records := producer.batches[0]
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "session-summaries", first.Topic)
	assert.Equal(t, []byte("s1"), first.Key)
	assert.Equal(t, now, first.Timestamp)
	require.Len(t, first.Headers, 2)
	assert.Equal(t, "message_id", first.Headers[0].Key)
	assert.NotEmpty(t, first.Headers[0].Value)

	var msg SummaryMessage
	require.NoError(t, json.Unmarshal(first.Value, &msg))
	assert.Equal(t, correlation.SessionID("s1"), msg.SessionID)
	assert.Equal(t, 2, msg.ViolationCount)
	assert.Equal(t, []string{"no_person", "tab_switch"}, msg.DistinctEventTypes)
	assert.Equal(t, 1, msg.HighSeverityCount)
	assert.True(t, last.Equal(*msg.LastViolationAt))

	var empty map[string]any
	require.NoError(t, json.Unmarshal(records[1].Value, &empty))
	assert.Equal(t, []any{}, empty["distinct_event_types"], "an empty type list is published as []")
	assert.NotEqual(t, string(first.Headers[0].Value), string(records[1].Headers[0].Value))
}

func TestPublish_NothingToSend(t *testing.T) {
	producer := &fakeProducer{}
	require.NoError(t, newPublisher(producer).Publish(context.Background(), nil))
	assert.Empty(t, producer.batches)
}

func TestPublish_BreakerOpensOnFailures(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker not available")}
	breaker := circuit.New("test-feed", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	pub := newPublisher(producer, WithBreaker(breaker))
	reports := []correlation.SessionReport{{Session: correlation.Session{ID: "s1"}}}

	for range 2 {
		err := pub.Publish(context.Background(), reports)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.True(t, breaker.IsOpen())

	err := pub.Publish(context.Background(), reports)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Len(t, producer.batches, 2, "open breaker skips the producer")
}
