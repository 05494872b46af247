//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"proctor/internal/correlation"
	"proctor/internal/correlation/publisher"
)

func TestKafkaPublishRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	const topic = "session-summaries"
	client, err := publisher.NewClient([]string{broker}, topic)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, publisher.EnsureTopic(ctx, client, topic, 1, 1))
	require.NoError(t, publisher.EnsureTopic(ctx, client, topic, 1, 1), "existing topic is accepted")

	err = publisher.NewKafka(client, topic).Publish(ctx, []correlation.SessionReport{{
		Session: correlation.Session{ID: "s1", Status: correlation.SessionInProgress},
		Summary: correlation.Summary{ViolationCount: 3},
	}})
	require.NoError(t, err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "s1", string(records[0].Key))

	var msg publisher.SummaryMessage
	require.NoError(t, json.Unmarshal(records[0].Value, &msg))
	require.Equal(t, 3, msg.ViolationCount)
}
