package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstCallDoesNotBlock(t *testing.T) {
	p := NewPacer(time.Minute)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacerEnforcesGap(t *testing.T) {
	p := NewPacer(50 * time.Millisecond)

	require.NoError(t, p.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacerAllow(t *testing.T) {
	p := NewPacer(time.Minute)

	assert.True(t, p.Allow())
	assert.False(t, p.Allow(), "gap has not elapsed yet")
}

func TestPacerWaitHonoursContext(t *testing.T) {
	p := NewPacer(time.Minute)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(time.Minute)
	require.NoError(t, p.Wait(context.Background()))

	p.Reset()
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
