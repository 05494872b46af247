package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	b := New("correlation-cache")
	assert.Equal(t, "correlation-cache", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

// failures drives b through n consecutive failures and returns the last
// transition reported.
func failures(b *Breaker, n int) (bool, StateChange) {
	var (
		fallback bool
		change   StateChange
	)
	for range n {
		fallback, change = b.RecordFailure()
	}
	return fallback, change
}

func TestBreaker_Transitions(t *testing.T) {
	t.Run("cache outage opens after the threshold", func(t *testing.T) {
		b := New("correlation-cache", WithFailureThreshold(3))

		fallback, change := failures(b, 2)
		assert.False(t, fallback)
		assert.False(t, change.Opened)

		fallback, change = b.RecordFailure()
		assert.True(t, fallback)
		assert.True(t, change.Opened, "the third timeout opens the breaker")
		assert.True(t, b.IsOpen())

		_, change = b.RecordFailure()
		assert.False(t, change.Opened, "already open reports no transition")
	})

	t.Run("a reply between failures restarts the count", func(t *testing.T) {
		b := New("correlation-cache", WithFailureThreshold(3))
		failures(b, 2)
		b.RecordSuccess()
		failures(b, 2)
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("broker recovery needs consecutive successes", func(t *testing.T) {
		b := New("session-summary-feed", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		require.True(t, b.IsOpen())

		primary, change := b.RecordSuccess()
		assert.False(t, primary)
		assert.False(t, change.Closed)

		b.RecordFailure()
		b.RecordSuccess()
		assert.True(t, b.IsOpen(), "a failure resets the success streak")

		primary, change = b.RecordSuccess()
		assert.True(t, primary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("reset closes immediately", func(t *testing.T) {
		b := New("session-summary-feed", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		assert.False(t, b.IsOpen())
		assert.True(t, b.Allow())
	})
}

func TestBreaker_AllowProbesAfterCooldown(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	b := New("correlation-cache", WithFailureThreshold(1), WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }))

	b.RecordFailure()
	assert.False(t, b.Allow(), "open breaker skips redis during cooldown")

	now = now.Add(30 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow(), "one probe after cooldown")
	assert.False(t, b.Allow(), "second probe waits for the next cooldown")

	primary, change := b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}
