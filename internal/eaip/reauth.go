package eaip

import (
	"context"
	"errors"
)

// reauthBudget bounds how many re-authentications one high level operation
// may trigger, so a portal that keeps reporting expiry cannot loop forever.
type reauthBudget struct {
	remaining int
}

func newReauthBudget(n int) *reauthBudget {
	return &reauthBudget{remaining: n}
}

func (b *reauthBudget) allows() bool {
	return b != nil && b.remaining > 0
}

func (b *reauthBudget) take() bool {
	if !b.allows() {
		return false
	}
	b.remaining--
	return true
}

// retryAfterReauth runs op once. When op fails with an error shouldRetry
// accepts, reauth is called and op is run a second time. The second result
// is returned as is.
func retryAfterReauth[T any](
	ctx context.Context,
	reauth func(ctx context.Context) error,
	shouldRetry func(err error) bool,
	op func(ctx context.Context) (T, error),
) (T, error) {
	out, err := op(ctx)
	if err == nil || !shouldRetry(err) {
		return out, err
	}
	if ctx.Err() != nil {
		return out, err
	}

	reauthErr := reauth(ctx)
	if reauthErr != nil {
		var zero T
		return zero, reauthErr
	}
	return op(ctx)
}

// ensureAuthenticated runs op and, if the portal reports the session has
// expired, logs in again and runs op one more time.
func ensureAuthenticated[T any](
	ctx context.Context,
	reauth func(ctx context.Context) error,
	op func(ctx context.Context) (T, error),
) (T, error) {
	return retryAfterReauth(
		ctx,
		reauth,
		func(err error) bool {
			return errors.Is(err, ErrSessionExpired)
		},
		op,
	)
}
