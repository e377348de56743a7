package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a fixed minimum gap between consecutive operations. The
// timeline paginator uses a 300ms pacer between pages and the submission
// pipeline a 5s pacer between posts.
type Pacer struct {
	gap  time.Duration
	last time.Time
	mu   sync.Mutex
}

// NewPacer creates a pacer with the given minimum gap.
func NewPacer(gap time.Duration) *Pacer {
	return &Pacer{gap: gap}
}

// Allow reports whether the gap since the previous operation has elapsed,
// consuming the slot when it has.
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.last.IsZero() || now.Sub(p.last) >= p.gap {
		p.last = now
		return true
	}
	return false
}

// Wait blocks until the gap has elapsed or ctx is done. The first call never
// blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for {
		p.mu.Lock()
		now := time.Now()
		var sleep time.Duration
		if p.last.IsZero() || now.Sub(p.last) >= p.gap {
			p.last = now
			p.mu.Unlock()
			return nil
		}
		sleep = p.gap - now.Sub(p.last)
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Reset clears the pacer so the next Wait returns immediately.
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = time.Time{}
}
