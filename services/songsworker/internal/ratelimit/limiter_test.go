package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_SpacesPermits(t *testing.T) {
	l := NewInterval(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// first permit is free, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiter_WaitHonoursCancellation(t *testing.T) {
	l := NewInterval(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_DeadlineTooShort(t *testing.T) {
	l := NewInterval(time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	start := time.Now()
	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoError(t, ctx.Err(), "the refusal comes before the deadline")
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_NilIsOpen(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_OnWait(t *testing.T) {
	l := NewInterval(10 * time.Millisecond)
	var calls int
	l.OnWait = func(time.Duration) { calls++ }
	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, calls)
}
