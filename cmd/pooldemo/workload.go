package main

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	concpool "github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/coachpo/objpool/config"
	"github.com/coachpo/objpool/errs"
	"github.com/coachpo/objpool/internal/counter"
	"github.com/coachpo/objpool/internal/pool"
)

const (
	retryInitialInterval = time.Millisecond
	retryMaxInterval     = 50 * time.Millisecond
)

type workloadResult struct {
	Completed int64 `json:"completed"`
	Exhausted int64 `json:"exhausted"`
	GaveUp    int64 `json:"gave_up"`
}

// runWorkload has every worker check out, increment and release a counter
// Iterations times. Exhausted checkouts are retried with exponential backoff
// until MaxRetryElapsed, after which the iteration is counted as given up.
func runWorkload(ctx context.Context, settings config.WorkloadSettings, p *counterPool) (workloadResult, error) {
	var limiter *rate.Limiter
	if settings.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.RatePerSecond), settings.Workers)
	}

	var completed, exhausted, gaveUp atomic.Int64
	workers := concpool.New().WithContext(ctx).WithMaxGoroutines(settings.Workers)
	for w := 0; w < settings.Workers; w++ {
		workers.Go(func(ctx context.Context) error {
			for i := 0; i < settings.Iterations; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}
				h, err := checkoutWithRetry(ctx, p, settings.MaxRetryElapsed, &exhausted)
				if errors.Is(err, pool.ErrExhausted) {
					gaveUp.Add(1)
					continue
				}
				if err != nil {
					return err
				}
				h.Value().Increment()
				h.Release()
				completed.Add(1)
			}
			return nil
		})
	}
	err := workers.Wait()

	return workloadResult{
		Completed: completed.Load(),
		Exhausted: exhausted.Load(),
		GaveUp:    gaveUp.Load(),
	}, err
}

func checkoutWithRetry(ctx context.Context, p *counterPool, maxElapsed time.Duration, exhausted *atomic.Int64) (*pool.Handle[*counter.Counter], error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval

	return backoff.Retry(ctx, func() (*pool.Handle[*counter.Counter], error) {
		h, ok := p.Checkout()
		if !ok {
			exhausted.Add(1)
			if p.Stats().Closed {
				return nil, backoff.Permanent(errs.New(p.Name(), errs.CodeClosed,
					errs.WithMessage("pool closed during workload")))
			}
			return nil, pool.ErrExhausted
		}
		return h, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(maxElapsed))
}
