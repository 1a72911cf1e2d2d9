package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
)

// retrier repeats a failed request in place. With MaxRetries at zero every
// call is attempted exactly once.
type retrier struct {
	cfg     *config.Config
	metrics *Metrics
	wait    func(ctx context.Context, d time.Duration) error

	totalRetries int
}

func newRetrier(cfg *config.Config, metrics *Metrics) *retrier {
	return &retrier{
		cfg:     cfg,
		metrics: metrics,
		wait:    sleepContext,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (r *retrier) Do(ctx context.Context, url string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !retryable(err) || attempt >= r.cfg.MaxRetries {
			return err
		}

		r.totalRetries++
		r.metrics.IncRetries()

		delay := r.backoff(attempt + 1)
		slog.Warn("retrying request",
			slog.String("url", url),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		if err := r.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (r *retrier) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := r.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := r.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (r *retrier) TotalRetries() int {
	return r.totalRetries
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
