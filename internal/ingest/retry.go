package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/provider"
)

// Default retry settings for provider calls
const (
	DefaultRetries   = 3
	DefaultBaseDelay = 5 * time.Second
)

// ErrRetriesExhausted is returned when every attempt was rate limited
var ErrRetriesExhausted = errors.New("retries exhausted")

// Fetcher wraps provider calls with bounded retries. Only rate-limit failures
// are retried; not-found yields an empty result and anything else fails at once.
type Fetcher struct {
	retries   int
	baseDelay time.Duration
	logger    arbor.ILogger
}

// NewFetcher creates a Fetcher making at most retries attempts per call,
// waiting baseDelay × attempt between attempts.
func NewFetcher(retries int, baseDelay time.Duration, logger arbor.ILogger) *Fetcher {
	if retries < 1 {
		retries = DefaultRetries
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Fetcher{
		retries:   retries,
		baseDelay: baseDelay,
		logger:    logger,
	}
}

// linearBackOff grows the wait by baseDelay on every attempt
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

// Fetch runs op through f. what names the call in logs and errors.
// A not-found response returns the zero value of T and a nil error.
func Fetch[T any](ctx context.Context, f *Fetcher, what string, op func(context.Context) (T, error)) (T, error) {
	var (
		zero   T
		result T
		calls  int
	)

	operation := func() error {
		calls++
		r, err := op(ctx)
		if err == nil {
			result = r
			return nil
		}
		if errors.Is(err, provider.ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		f.logger.Warn().
			Str("call", what).
			Int("attempt", calls).
			Int("max_attempts", f.retries).
			Str("wait", wait.String()).
			Msg("Rate limited by provider, backing off")
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: f.baseDelay}, uint64(f.retries-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, notify)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, provider.ErrNotFound):
		f.logger.Warn().Str("call", what).Msg("Provider returned no data")
		return zero, nil
	case errors.Is(err, provider.ErrRateLimited):
		return zero, fmt.Errorf("%s: %w after %d attempts: %w", what, ErrRetriesExhausted, calls, err)
	default:
		return zero, fmt.Errorf("failed to fetch %s: %w", what, err)
	}
}
