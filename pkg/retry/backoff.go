package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay before a given retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based).
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by a multiplier per attempt, with
// optional jitter and a delay cap.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultExponentialBackoff returns an exponential backoff starting at one
// second, doubling per attempt, capped at thirty seconds with jitter.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NextDelay computes the delay before the given attempt.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return b.withJitter(b.InitialDelay)
	}

	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if d := time.Duration(delay); d > b.MaxDelay {
		return b.withJitter(b.MaxDelay)
	}
	return b.withJitter(time.Duration(delay))
}

func (b *ExponentialBackoff) withJitter(d time.Duration) time.Duration {
	if !b.Jitter {
		return d
	}
	// +/- 25%
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d - d/4 + jitter
}

// ConstantBackoff waits the same delay before every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay.
func (b *ConstantBackoff) NextDelay(int) time.Duration {
	return b.Delay
}
