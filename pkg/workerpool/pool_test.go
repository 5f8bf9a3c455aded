package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_SubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())

	items := make([]WorkItem[int], 8)
	for i := range items {
		items[i] = WorkItem[int]{
			ID: fmt.Sprintf("item%d", i),
			Execute: func(ctx context.Context) (int, error) {
				// Later items finish first.
				time.Sleep(time.Duration(8-i) * time.Millisecond)
				return i * 10, nil
			},
		}
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("item%d", i), r.ID)
		assert.Equal(t, i*10, r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_ErrorsAreIsolated(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	expectedErr := errors.New("item failed")

	items := []WorkItem[string]{
		{ID: "a", Execute: func(ctx context.Context) (string, error) { return "ok-a", nil }},
		{ID: "b", Execute: func(ctx context.Context) (string, error) { return "", expectedErr }},
		{ID: "c", Execute: func(ctx context.Context) (string, error) { return "ok-c", nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, expectedErr)
	assert.Equal(t, "ok-c", results[2].Result)
}

func TestProcess_Empty(t *testing.T) {
	pool := New(Config{}, zap.NewNop())
	assert.Nil(t, Process[int](context.Background(), pool, nil, nil))
	assert.Equal(t, DefaultConfig().MaxConcurrent, pool.MaxConcurrent())
}

func TestProcess_Cancelled(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { ran.Add(1); return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { ran.Add(1); return 2, nil }},
	}

	results := Process(ctx, pool, items, nil)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, int32(0), ran.Load())
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	maxConcurrent := 3
	pool := New(Config{MaxConcurrent: maxConcurrent}, zap.NewNop())

	var current, maxObserved atomic.Int32
	items := make([]WorkItem[struct{}], 10)
	for i := range items {
		items[i] = WorkItem[struct{}]{
			ID: fmt.Sprintf("item%d", i),
			Execute: func(ctx context.Context) (struct{}, error) {
				n := current.Add(1)
				defer current.Add(-1)
				for {
					m := maxObserved.Load()
					if n <= m || maxObserved.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				return struct{}{}, nil
			},
		}
	}

	Process(context.Background(), pool, items, nil)
	assert.LessOrEqual(t, maxObserved.Load(), int32(maxConcurrent))
	assert.GreaterOrEqual(t, maxObserved.Load(), int32(2))
}

func TestProcess_ProgressCallback(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	items := []WorkItem[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
		{ID: "c", Execute: func(ctx context.Context) (int, error) { return 3, nil }},
	}

	var mu sync.Mutex
	var updates []int
	Process(context.Background(), pool, items, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		updates = append(updates, completed)
	})
	assert.Equal(t, []int{1, 2, 3}, updates)
}
