package workerpool

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum items executing at once (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool runs independent work items with bounded parallelism.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the effective concurrency limit.
func (p *Pool) MaxConcurrent() int { return p.config.MaxConcurrent }

// WorkItem is a unit of work.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult is the outcome of one work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items and returns their results in submission order.
// A failing item does not stop the others; items not yet started when ctx is
// cancelled report ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	done := make(chan struct{}, len(items))

	go func() {
		var g errgroup.Group
		g.SetLimit(pool.config.MaxConcurrent)
		for i, item := range items {
			g.Go(func() error {
				defer func() { done <- struct{}{} }()
				if err := ctx.Err(); err != nil {
					results[i] = WorkResult[T]{ID: item.ID, Err: err}
					return nil
				}
				result, err := item.Execute(ctx)
				if err != nil {
					pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
				}
				results[i] = WorkResult[T]{ID: item.ID, Result: result, Err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}
	return results
}
