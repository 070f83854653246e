package eaip

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries an operation a fixed number of times with a constant
// delay in between.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

// Do runs op until it returns nil, the attempts run out or ctx is done. It
// returns how many times op was called along with the last error. notify is
// called after every failed attempt that will be retried and may be nil.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(err error, attempt int)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			return op()
		},
		b,
		func(err error, _ time.Duration) {
			if notify != nil {
				notify(err, attempts)
			}
		},
	)
	return attempts, err
}
