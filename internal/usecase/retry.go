package usecase

import (
	"context"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

// extra time an attempt's HTTP calls get on top of the run timeout
const runTimeoutGrace = 30 * time.Second

type RetryPolicy struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	RateLimitMultiplier float64
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryController wraps actor platform calls in a bounded exponential backoff
// loop. Network errors, timeouts and rate limits are retried; everything else,
// including runs that finished with a failed status or were still running at
// the deadline, is returned at once.
type RetryController struct {
	client  domain.ActorClient
	policy  RetryPolicy
	logger  *logger.Logger
	metrics *metrics.Metrics
	sleep   Sleeper
}

func NewRetryController(client domain.ActorClient, policy RetryPolicy, logger *logger.Logger, metrics *metrics.Metrics) *RetryController {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.RateLimitMultiplier < 1 {
		policy.RateLimitMultiplier = 1
	}
	return &RetryController{
		client:  client,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		sleep:   sleepContext,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (r *RetryController) Delay(attempt int, kind domain.ErrorKind) time.Duration {
	delay := r.policy.BaseDelay
	for i := 1; i < attempt && delay < r.policy.MaxDelay; i++ {
		delay *= 2
	}
	if delay > r.policy.MaxDelay {
		delay = r.policy.MaxDelay
	}
	if kind == domain.KindRateLimited {
		delay = time.Duration(float64(delay) * r.policy.RateLimitMultiplier)
	}
	return delay
}

// Do runs fn until it succeeds, fails terminally, or attempts run out. The
// last error is returned unchanged.
func (r *RetryController) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		kind := domain.KindOf(lastErr)
		if !domain.Retryable(lastErr) || attempt == r.policy.MaxAttempts || ctx.Err() != nil {
			break
		}

		delay := r.Delay(attempt, kind)
		r.metrics.RecordActorRetry(operation, string(kind))
		r.logger.WithContext(ctx).WithError(lastErr).WithFields(map[string]any{
			"operation":  operation,
			"attempt":    attempt,
			"max":        r.policy.MaxAttempts,
			"error_kind": kind,
			"delay":      delay.String(),
		}).Warn("Actor call failed, retrying")

		if err := r.sleep(ctx, delay); err != nil {
			break
		}
	}

	return lastErr
}

// RunWithRetry starts an actor run. Each attempt is bounded by timeout plus
// a grace period for the HTTP round trips.
func (r *RetryController) RunWithRetry(ctx context.Context, actorID string, input domain.RunInput, timeout time.Duration) (*domain.RunHandle, error) {
	var handle *domain.RunHandle

	err := r.Do(ctx, "run", func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout+runTimeoutGrace)
		defer cancel()

		h, err := r.client.Run(attemptCtx, actorID, input, timeout)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (r *RetryController) ListItemsWithRetry(ctx context.Context, datasetID string, limit int) ([]domain.RawRecord, error) {
	var items []domain.RawRecord

	err := r.Do(ctx, "list_items", func(ctx context.Context) error {
		got, err := r.client.ListItems(ctx, datasetID, limit)
		if err != nil {
			return err
		}
		items = got
		return nil
	})
	return items, err
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
