// README: Bounded retry combinator used by the matching probe and the payment call.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Stop wraps an error to abort the loop immediately without further attempts.
type Stop struct {
	Err error
}

func (s Stop) Error() string { return s.Err.Error() }

// Do runs fn up to attempts times, sleeping delay between attempts.
// It returns nil on the first success. A fn error wrapped in Stop aborts
// immediately and is returned unwrapped. When all attempts fail the last
// error is joined with ErrExhausted.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		var stop Stop
		if errors.As(err, &stop) {
			return stop.Err
		}
		last = err
	}
	return errors.Join(ErrExhausted, last)
}
