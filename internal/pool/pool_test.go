package pool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInputOrder(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	results := Map(context.Background(), items, 8, func(ctx context.Context, item int) (string, error) {
		// Later items finish first to exercise out-of-order completion.
		time.Sleep(time.Duration(50-item) * time.Millisecond / 10)
		return fmt.Sprintf("item-%d", item), nil
	})

	require.Len(t, results, 50)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.Value)
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int32

	items := make([]int, 20)
	Map(context.Background(), items, limit, func(ctx context.Context, item int) (struct{}, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestMapCapturesWorkerErrors(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3}

	results := Map(context.Background(), items, 2, func(ctx context.Context, item int) (int, error) {
		if item%2 == 1 {
			return 0, boom
		}
		return item * 10, nil
	})

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 20, results[2].Value)
	assert.ErrorIs(t, results[3].Err, boom)
}

func TestMapCapturesPanics(t *testing.T) {
	items := []string{"ok", "panic", "ok"}

	results := Map(context.Background(), items, 2, func(ctx context.Context, item string) (string, error) {
		if item == "panic" {
			panic("worker exploded")
		}
		return item, nil
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "worker exploded")
	assert.NoError(t, results[2].Err)
}

func TestMapEmptyInput(t *testing.T) {
	results := Map(context.Background(), nil, 4, func(ctx context.Context, item int) (int, error) {
		t.Fatal("worker should never run")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestMapZeroConcurrency(t *testing.T) {
	results := Map(context.Background(), []int{1, 2}, 0, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Value)
	assert.Equal(t, 2, results[1].Value)
}

func TestMapCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := make([]int, 10)
	results := Map(ctx, items, 2, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})

	// Every item is accounted for even under cancellation.
	require.Len(t, results, 10)
	var cancelled int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Greater(t, cancelled, 0)
}
