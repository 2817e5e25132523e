package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// ThrottledSender wraps a Sender with a shared rate limiter and
// exponential-backoff retries. One limiter is shared across the whole
// invocation, so bounded-parallelism callers still respect the global
// gateway rate.
type ThrottledSender struct {
	inner      Sender
	limiter    *rate.Limiter
	maxElapsed time.Duration
}

func NewThrottledSender(inner Sender, ratePerSec int, maxElapsed time.Duration) *ThrottledSender {
	return &ThrottledSender{
		inner:      inner,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		maxElapsed: maxElapsed,
	}
}

func (s *ThrottledSender) SendBatch(ctx context.Context, msgs []Message) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var id string
	operation := func() error {
		var err error
		id, err = s.inner.SendBatch(ctx, msgs)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return id, nil
}
