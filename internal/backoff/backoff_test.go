package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayGrowsAndCaps(t *testing.T) {
	p := Policy{
		Initial:    100 * time.Millisecond,
		Multiplier: 2,
		Cap:        800 * time.Millisecond,
	}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
	// Capped from here on.
	assert.Equal(t, 800*time.Millisecond, p.Delay(5))
	assert.Equal(t, 800*time.Millisecond, p.Delay(50))
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{
		Initial:    100 * time.Millisecond,
		Multiplier: 2,
		Cap:        800 * time.Millisecond,
		JitterMax:  50 * time.Millisecond,
	}

	for attempt := 1; attempt <= 6; attempt++ {
		base := p.Base(attempt)
		for i := 0; i < 100; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.Less(t, d, base+p.JitterMax)
		}
	}
}

func TestDelayNonDecreasingDeterministicComponent(t *testing.T) {
	p := Policy{
		Initial:    50 * time.Millisecond,
		Multiplier: 2,
		Cap:        2 * time.Second,
		JitterMax:  10 * time.Millisecond,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		base := p.Base(attempt)
		assert.GreaterOrEqual(t, base, prev)
		assert.LessOrEqual(t, base, p.Cap)
		prev = base
	}
}

func TestDelayClampsBadAttempt(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Multiplier: 2, Cap: time.Second}
	assert.Equal(t, p.Delay(1), p.Delay(0))
	assert.Equal(t, p.Delay(1), p.Delay(-5))
}

func TestSleepHonorsContext(t *testing.T) {
	p := Policy{Initial: 10 * time.Second, Multiplier: 2, Cap: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.Sleep(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepCompletes(t *testing.T) {
	p := Policy{Initial: 5 * time.Millisecond, Multiplier: 2, Cap: 5 * time.Millisecond}
	assert.NoError(t, p.Sleep(context.Background(), 1))
}
