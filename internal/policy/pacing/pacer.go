// Package pacing spaces out detail requests: a uniformly random pause
// before every call, optionally capped by a requests-per-minute ceiling.
package pacing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the pause window and the optional ceiling.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	// MaxPerMinute caps request starts per minute; zero disables the cap.
	MaxPerMinute float64
}

// Sleeper blocks for a duration unless ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Option customizes a Pacer.
type Option func(*Pacer)

// WithRand replaces the [0,1) source used to pick delays.
func WithRand(fn func() float64) Option {
	return func(p *Pacer) {
		if fn != nil {
			p.rnd = fn
		}
	}
}

// Pacer implements the wait taken before each detail request.
type Pacer struct {
	minDelay time.Duration
	maxDelay time.Duration
	rnd      func() float64
	sleeper  Sleeper
	limiter  *rate.Limiter
}

// New creates a Pacer. A window with MaxDelay below MinDelay collapses to
// MinDelay.
func New(cfg Config, sleeper Sleeper, opts ...Option) *Pacer {
	maxDelay := cfg.MaxDelay
	if maxDelay < cfg.MinDelay {
		maxDelay = cfg.MinDelay
	}
	p := &Pacer{
		minDelay: cfg.MinDelay,
		maxDelay: maxDelay,
		rnd:      rand.Float64,
		sleeper:  sleeper,
	}
	if cfg.MaxPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/cfg.MaxPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next picks the next delay, uniform over [MinDelay, MaxDelay].
func (p *Pacer) Next() time.Duration {
	span := p.maxDelay - p.minDelay
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rnd()*float64(span))
}

// Wait sleeps for the next delay and then for the ceiling, if any. It
// returns the random delay that was slept.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Next()
	if p.sleeper != nil {
		if err := p.sleeper.Sleep(ctx, d); err != nil {
			return d, fmt.Errorf("pacing delay: %w", err)
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return d, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return d, nil
}
