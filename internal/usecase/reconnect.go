package usecase

import (
	"math/rand"
	"time"
)

// ReconnectPolicy decides whether and when a dropped connection is redialed.
// attempt starts at 1 for the first retry after a drop.
type ReconnectPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NoReconnect never redials.
type NoReconnect struct{}

func (NoReconnect) Next(int) (time.Duration, bool) { return 0, false }

// ExponentialBackoff doubles (by Multiplier) the delay on each attempt,
// capped at Max, with +/- Jitter fraction of randomization.
type ExponentialBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      float64
	MaxAttempts int

	rand func() float64
}

func (b ExponentialBackoff) Next(attempt int) (time.Duration, bool) {
	if attempt <= 0 || b.MaxAttempts <= 0 || attempt > b.MaxAttempts {
		return 0, false
	}

	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maxDelay := b.Max
	if maxDelay < initial {
		maxDelay = initial
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if delay >= float64(maxDelay) {
			delay = float64(maxDelay)
			break
		}
	}

	if b.Jitter > 0 {
		random := b.rand
		if random == nil {
			random = rand.Float64
		}
		delay += delay * b.Jitter * (2*random() - 1)
	}
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay), true
}
