package pacing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	slept []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return s.err
}

func TestNextSpansWindow(t *testing.T) {
	t.Parallel()

	cfg := Config{MinDelay: 4500 * time.Millisecond, MaxDelay: 15 * time.Second}
	tests := []struct {
		name string
		r    float64
		want time.Duration
	}{
		{"lower bound", 0, 4500 * time.Millisecond},
		{"midpoint", 0.5, 9750 * time.Millisecond},
		{"near upper bound", 0.999999, 15*time.Second - 10500*time.Nanosecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := New(cfg, nil, WithRand(func() float64 { return tt.r }))
			require.InDelta(t, float64(tt.want), float64(p.Next()), float64(time.Microsecond))
		})
	}
}

func TestNextStaysInsideWindowWithRealSource(t *testing.T) {
	t.Parallel()

	p := New(Config{MinDelay: time.Second, MaxDelay: 2 * time.Second}, nil)
	for i := 0; i < 1000; i++ {
		d := p.Next()
		require.GreaterOrEqual(t, d, time.Second)
		require.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestInvertedWindowCollapses(t *testing.T) {
	t.Parallel()

	p := New(Config{MinDelay: 3 * time.Second, MaxDelay: time.Second}, nil)
	require.Equal(t, 3*time.Second, p.Next())
}

func TestWaitSleepsChosenDelay(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(Config{MinDelay: time.Second, MaxDelay: 3 * time.Second}, sleeper,
		WithRand(func() float64 { return 0.25 }))
	d, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, d)
	require.Equal(t, []time.Duration{1500 * time.Millisecond}, sleeper.slept)
}

func TestWaitPropagatesCancellation(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{err: context.Canceled}
	p := New(Config{MinDelay: time.Second, MaxDelay: time.Second}, sleeper)
	_, err := p.Wait(context.Background())
	require.True(t, errors.Is(err, context.Canceled))
}

func TestWaitAppliesCeiling(t *testing.T) {
	t.Parallel()

	// 1200 per minute is one token every 50ms with a burst of one.
	p := New(Config{MaxPerMinute: 1200}, &recordingSleeper{})
	ctx := context.Background()
	_, err := p.Wait(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Wait(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
