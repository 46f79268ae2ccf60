package model

import (
	"context"
	"errors"
	"net"
	"time"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxAttempts is the total number of calls including the first one.
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles afterwards.
	Backoff time.Duration
	// Retryable decides whether an error is transient. Defaults to IsTransient.
	Retryable func(error) bool
}

// DefaultRetryOptions retries transient failures twice.
var DefaultRetryOptions = RetryOptions{MaxAttempts: 3, Backoff: 250 * time.Millisecond}

// retryModel decorates a Model with bounded retries of transient failures.
type retryModel struct {
	next Model
	opts RetryOptions
}

// WithRetry wraps m so transient transport failures are retried a bounded
// number of times. Empty responses and semantic failures are never retried,
// and nothing is retried once ctx is done.
func WithRetry(m Model, optFns ...func(o *RetryOptions)) Model {
	opts := DefaultRetryOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Retryable == nil {
		opts.Retryable = IsTransient
	}
	return &retryModel{next: m, opts: opts}
}

// Info implements Model.
func (r *retryModel) Info() Info { return r.next.Info() }

// Generate implements Model. The wrapped call is completed before the result
// is forwarded, so partial chunks of a failed attempt never reach the caller.
func (r *retryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		wait := r.opts.Backoff
		var lastErr error
		for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
			resp, err := Complete(ctx, r.next, req)
			if err == nil {
				out <- resp
				return
			}
			lastErr = err
			if attempt == r.opts.MaxAttempts || !r.opts.Retryable(err) {
				break
			}
			if err := sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
			wait *= 2
		}
		errCh <- lastErr
	}()

	return out, errCh
}

// IsTransient reports whether err looks like a temporary transport failure:
// network timeouts, rate limiting (429) and server errors (5xx).
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
