// Package publisher feeds per-session violation summaries to Kafka so
// downstream consumers (grading, notification) see the same attribution the
// dashboard shows.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"proctor/internal/correlation"
	"proctor/pkg/platform/circuit"
	"proctor/pkg/platform/sentinel"
)

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// SummaryMessage is the record value published for each session.
type SummaryMessage struct {
	SessionID          correlation.SessionID     `json:"session_id"`
	ParticipantID      string                    `json:"participant_id,omitempty"`
	SubjectCode        string                    `json:"subject_code,omitempty"`
	Status             correlation.SessionStatus `json:"status"`
	ViolationCount     int                       `json:"violation_count"`
	DistinctEventTypes []string                  `json:"distinct_event_types"`
	HighSeverityCount  int                       `json:"high_severity_count"`
	LastViolationAt    *time.Time                `json:"last_violation_at,omitempty"`
	PublishedAt        time.Time                 `json:"published_at"`
}

// Kafka publishes one compacted record per session, keyed by session id.
type Kafka struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Kafka)

func WithBreaker(b *circuit.Breaker) Option {
	return func(k *Kafka) {
		k.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) {
		k.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(k *Kafka) {
		k.now = now
	}
}

func NewKafka(producer Producer, topic string, opts ...Option) *Kafka {
	k := &Kafka{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("summary-feed", circuit.WithCooldown(time.Minute)),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Publish sends every report in one batch. While the breaker is open the
// batch is skipped; the next pass republishes the full state anyway.
func (k *Kafka) Publish(ctx context.Context, reports []correlation.SessionReport) error {
	if len(reports) == 0 {
		return nil
	}
	if !k.breaker.Allow() {
		return fmt.Errorf("summary feed: %w", sentinel.ErrUnavailable)
	}

	publishedAt := k.now().UTC()
	records := make([]*kgo.Record, 0, len(reports))
	for _, report := range reports {
		record, err := k.record(report, publishedAt)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	if err := k.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if _, change := k.breaker.RecordFailure(); change.Opened {
			k.logger.WarnContext(ctx, "summary feed unavailable, pausing publishes",
				"topic", k.topic,
				"error", err,
			)
		}
		return fmt.Errorf("produce summaries: %w", err)
	}
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "summary feed recovered", "topic", k.topic)
	}
	return nil
}

func (k *Kafka) record(report correlation.SessionReport, publishedAt time.Time) (*kgo.Record, error) {
	types := report.Summary.DistinctEventTypes
	if types == nil {
		types = []string{}
	}
	value, err := json.Marshal(SummaryMessage{
		SessionID:          report.Session.ID,
		ParticipantID:      report.Session.ParticipantID,
		SubjectCode:        report.Session.SubjectCode,
		Status:             report.Session.Status,
		ViolationCount:     report.Summary.ViolationCount,
		DistinctEventTypes: types,
		HighSeverityCount:  report.Summary.HighSeverityCount,
		LastViolationAt:    report.Summary.LastViolationAt,
		PublishedAt:        publishedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode summary %s: %w", report.Session.ID, err)
	}
	return &kgo.Record{
		Topic: k.topic,
		Key:   []byte(report.Session.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "message_id", Value: []byte(uuid.NewString())},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Timestamp: publishedAt,
	}, nil
}

// NewClient connects a franz-go client for the summary topic.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates topic as a compacted topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	compact := "compact"
	resp, err := kadm.NewClient(client).CreateTopic(ctx, partitions, replication,
		map[string]*string{"cleanup.policy": &compact}, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
