package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_SubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())

	var items []Item[string]
	for i := 0; i < 6; i++ {
		i := i
		items = append(items, Item[string]{
			ID: fmt.Sprintf("task%d", i),
			Execute: func(ctx context.Context) (string, error) {
				// Later items finish first.
				time.Sleep(time.Duration(6-i) * time.Millisecond)
				return fmt.Sprintf("result%d", i), nil
			},
		})
	}

	results := Process(context.Background(), pool, items)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("task%d", i), r.ID)
		assert.Equal(t, fmt.Sprintf("result%d", i), r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_ErrorsDoNotStopOthers(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	boom := errors.New("search failed")

	results := Process(context.Background(), pool, []Item[int]{
		{ID: "a", Execute: func(context.Context) (int, error) { return 1, nil }},
		{ID: "b", Execute: func(context.Context) (int, error) { return 0, boom }},
		{ID: "c", Execute: func(context.Context) (int, error) { return 3, nil }},
	})

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Result)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 3, results[2].Result)
}

func TestProcess_Empty(t *testing.T) {
	pool := New(DefaultConfig(), zap.NewNop())
	assert.Nil(t, Process[string](context.Background(), pool, nil))
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var current, peak int32
	var items []Item[struct{}]
	for i := 0; i < 8; i++ {
		items = append(items, Item[struct{}]{
			ID: fmt.Sprint(i),
			Execute: func(context.Context) (struct{}, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return struct{}{}, nil
			},
		})
	}

	Process(context.Background(), pool, items)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcess_CanceledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	items := make([]Item[int], 5)
	for i := range items {
		items[i] = Item[int]{ID: fmt.Sprint(i), Execute: func(context.Context) (int, error) {
			atomic.AddInt32(&executed, 1)
			return 0, nil
		}}
	}

	results := Process(ctx, pool, items)
	require.Len(t, results, 5)

	canceled := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			canceled++
		}
	}
	// With the semaphore free, select may still pick the slot for some items.
	assert.Equal(t, int32(5-canceled), atomic.LoadInt32(&executed))
}

func TestNew_DefaultsConcurrency(t *testing.T) {
	assert.Equal(t, 4, New(Config{}, zap.NewNop()).MaxConcurrent())
}
