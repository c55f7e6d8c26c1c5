package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/study-mcp/internal/logger"
)

// NewLimiter creates a token-bucket limiter shared by all concurrent requests
func NewLimiter(tokensPerSecond, burstTokens int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(tokensPerSecond), burstTokens)
}

// RateLimitedCall waits for rate limiter approval and then makes the call once.
// Failures are returned as-is; nothing is retried.
func RateLimitedCall[T any](ctx context.Context, limiter *rate.Limiter, estimatedTokens int, log logger.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	// WaitN rejects requests larger than the bucket
	if estimatedTokens > limiter.Burst() {
		log.Debug("Clamping token estimate %d to burst size %d", estimatedTokens, limiter.Burst())
		estimatedTokens = limiter.Burst()
	}

	if err := limiter.WaitN(ctx, estimatedTokens); err != nil {
		return zero, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return fn(ctx)
}

// FanOut launches fn for every item before waiting on any of them and returns
// the results in input order once all have finished. If any call fails the
// first error is returned and no results are exposed. Calls already in flight
// are not cancelled when a sibling fails. limit <= 0 means unbounded.
func FanOut[T any, R any](
	ctx context.Context,
	items []T,
	limit int,
	fn func(context.Context, int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return []R{}, nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]R, len(items))
	for i, item := range items {
		g.Go(func() error {
			val, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = val
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
