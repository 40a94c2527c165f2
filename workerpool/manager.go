package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"

	"github.com/pitabwire/translation-manager/config"
)

// Manager owns the application worker pool.
type Manager struct {
	pool WorkerPool
}

// NewManager builds the worker pool from configuration; opts override the configured values.
func NewManager(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (*Manager, error) {
	poolOpts := defaultWorkerPoolOpts(cfg, util.Log(ctx))
	for _, opt := range opts {
		opt(poolOpts)
	}

	pool, err := setupWorkerPool(poolOpts)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Manager{pool: pool}, nil
}

func (m *Manager) GetPool() (WorkerPool, error) {
	if m == nil || m.pool == nil {
		return nil, ErrPoolNotConfigured
	}
	return m.pool, nil
}

// Shutdown releases the pool workers.
func (m *Manager) Shutdown(_ context.Context) {
	if m == nil || m.pool == nil {
		return
	}
	m.pool.Shutdown()
}

// Map applies fn to every item on the pool and returns the results in input order.
// When the pool is saturated the task runs on the caller's goroutine instead of failing.
// The first error cancels the context handed to the remaining tasks.
func Map[In, Out any](ctx context.Context, m *Manager, items []In, fn func(ctx context.Context, item In) (Out, error)) ([]Out, error) {
	pool, err := m.GetPool()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Out, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}

			results[i], errs[i] = fn(ctx, item)
			if errs[i] != nil {
				cancel()
			}
		}

		wg.Add(1)
		submitErr := pool.Submit(ctx, task)
		switch {
		case submitErr == nil:
		case errors.Is(submitErr, ants.ErrPoolOverload):
			task()
		default:
			wg.Done()
			errs[i] = submitErr
			cancel()
		}
	}
	wg.Wait()

	return results, firstError(errs)
}

// firstError prefers a task's own failure over the cancellations it caused.
func firstError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}
