package connection

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffSchedule(t *testing.T) {
	r := NewExponentialBackoffRetryer()
	lastErr := errors.New("dial failed")

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
	}
	for attempt, expected := range want {
		delay, retry := r.NextDelay(attempt, lastErr)
		require.True(t, retry, "attempt %d should retry", attempt)
		assert.Equal(t, expected, delay, "attempt %d", attempt)
	}

	_, retry := r.NextDelay(5, lastErr)
	assert.False(t, retry, "the sixth attempt gives up")
}

func TestExponentialBackoffMaxDelayCap(t *testing.T) {
	r := &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   10,
	}

	delay, retry := r.NextDelay(8, nil) // uncapped would be 256s
	require.True(t, retry)
	assert.Equal(t, 30*time.Second, delay)
}

func TestExponentialBackoffInfiniteRetries(t *testing.T) {
	r := &ExponentialBackoffRetryer{
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxRetries:   0,
	}

	_, retry := r.NextDelay(1000, nil)
	assert.True(t, retry)
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	r := &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   5,
		Jitter:       true,
		JitterFactor: 0.5,
	}

	for i := 0; i < 100; i++ {
		delay, retry := r.NextDelay(1, nil)
		require.True(t, retry)
		assert.GreaterOrEqual(t, delay, 1*time.Second)
		assert.LessOrEqual(t, delay, 3*time.Second)
	}
}

func TestFixedDelayRetryer(t *testing.T) {
	r := NewFixedDelayRetryer(250*time.Millisecond, 3)

	for attempt := 0; attempt < 3; attempt++ {
		delay, retry := r.NextDelay(attempt, nil)
		require.True(t, retry)
		assert.Equal(t, 250*time.Millisecond, delay)
	}

	_, retry := r.NextDelay(3, nil)
	assert.False(t, retry)
}
