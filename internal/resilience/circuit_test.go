package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trippedBreaker(t *testing.T, cfg BreakerConfig) *Breaker {
	t.Helper()
	b := NewBreaker(cfg)
	for i := 0; i < cfg.FailureThreshold; i++ {
		_ = b.Break(context.Background(), func(context.Context) error {
			return errors.New("upstream down")
		})
	}
	return b
}

func TestBreakerClosedPassesThrough(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig())

	calls := 0
	err := b.Break(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := trippedBreaker(t, BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	assert.Equal(t, BreakerOpen, b.State())

	err := b.Break(context.Background(), func(context.Context) error {
		t.Fatal("must not be called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_ = b.Break(context.Background(), func(context.Context) error {
			return errors.New("flake")
		})
	}
	require.NoError(t, b.Break(context.Background(), func(context.Context) error { return nil }))

	// The earlier failures no longer count toward the threshold.
	for i := 0; i < 2; i++ {
		_ = b.Break(context.Background(), func(context.Context) error {
			return errors.New("flake")
		})
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	var transitions []BreakerState
	cfg := BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_, to BreakerState) { transitions = append(transitions, to) },
	}
	b := trippedBreaker(t, cfg)

	// Move past the reset timeout.
	b.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A successful probe closes the breaker.
	require.NoError(t, b.Break(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}, transitions)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := trippedBreaker(t, BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	probed := time.Now().Add(2 * time.Minute)
	b.now = func() time.Time { return probed }

	err := b.Break(context.Background(), func(context.Context) error {
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBreakerOpen)

	// Back to open for another full timeout.
	err = b.Break(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}