package ingest

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

const (
	maxAttempts   = 4
	baseDelay     = 800 * time.Millisecond
	maxDelay      = 5 * time.Second
	jitterCeiling = 250 * time.Millisecond
)

// Deliverer is the single-shot submission contract Submitter drives.
type Deliverer interface {
	Submit(ctx context.Context, demoURL string) (Receipt, error)
}

// Submitter applies the delivery retry policy on top of a Deliverer: up to
// four attempts with exponential backoff, retrying only transient failures.
type Submitter struct {
	client Deliverer

	// sleep and jitter are injectable for tests. Defaults: context-aware
	// timer sleep and a uniform jitter in [0, 250ms).
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewSubmitter wraps a Deliverer with the retry policy.
func NewSubmitter(client Deliverer) *Submitter {
	return &Submitter{
		client: client,
		sleep:  sleepCtx,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(jitterCeiling))) },
	}
}

// Submit runs the retry loop. Permanent failures propagate immediately; a
// transient failure on the final attempt propagates as-is.
func (s *Submitter) Submit(ctx context.Context, demoURL string) (Receipt, error) {
	var lastErr *DeliveryError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		receipt, err := s.client.Submit(ctx, demoURL)
		if err == nil {
			if attempt > 1 {
				slog.Info("demo submission recovered", "attempt", attempt)
			}
			return receipt, nil
		}

		lastErr = Classify(err)
		if !lastErr.Transient() {
			slog.Warn("demo submission failed permanently", "attempt", attempt, "code", lastErr.Code, "status", lastErr.Status)
			return Receipt{}, lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt) + s.jitter()
		slog.Debug("demo submission retry scheduled", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr.Message)
		if err := s.sleep(ctx, delay); err != nil {
			return Receipt{}, &DeliveryError{Code: CodeTransient, Message: "submission canceled", Cause: err}
		}
	}

	slog.Warn("demo submission exhausted retries", "attempts", maxAttempts, "error", lastErr.Message)
	return Receipt{}, lastErr
}

// backoffDelay returns the base delay before attempt+1:
// min(5000ms, 800ms * 2^(attempt-1)).
func backoffDelay(attempt int) time.Duration {
	d := baseDelay << (attempt - 1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
