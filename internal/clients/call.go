package clients

import (
	"context"
	"time"
)

// HTTPTimeout upper bound of a single exchange request.
const HTTPTimeout = 15 * time.Second

type callResult[T any] struct {
	value T
	err   error
}

// Call runs fn, an SDK request that takes no context, and returns ctx.Err()
// as soon as ctx is done. fn keeps running in the background until the HTTP
// client gives up on it; its result is then discarded.
func Call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn()
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}
