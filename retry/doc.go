// Package retry runs an operation up to a bounded number of attempts.
//
// A Policy decides which errors are worth another attempt, how long to wait in
// between and what to do once attempts run out:
//
//	p := retry.New(
//		retry.WithMaxRetries(3),
//		retry.WithWait(2*time.Second),
//		retry.WithMustRaise(retry.Is(ErrBlocked)),
//	)
//
//	page, err := retry.Do(ctx, p, func(ctx context.Context, st retry.State) (Page, error) {
//		return fetch(ctx, url)
//	})
//
// Errors matched by WithMustRaise end the loop at once. Context cancellation
// is never retried. Panics inside an attempt are recovered into a PanicError
// and treated like any other failure.
package retry
