package module

import (
	"context"
	"fmt"
	"time"

	apperr "github.com/GriffinCanCode/breakwatch/internal/errors"
)

// call runs fn bounded by timeout. A module that ignores its context is
// abandoned; its goroutine finishes into a buffered channel nobody reads.
func call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- apperr.New(apperr.CodeInternal, fmt.Sprintf("panic: %v", r))
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return apperr.Wrapf(ctx.Err(), apperr.CodeTimeout, "no response within %v", timeout)
		}
		return apperr.Wrap(ctx.Err(), apperr.CodeCancelled, "cancelled")
	}
}
