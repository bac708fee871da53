// Package retry runs external calls with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Temporary marks an error as worth retrying.
type Temporary struct {
	Err error
	// After overrides the backoff delay when positive (e.g. Retry-After).
	After time.Duration
}

func (e *Temporary) Error() string { return e.Err.Error() }
func (e *Temporary) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a non-Temporary error, or maxRetries
// retries are spent. The last error is returned unwrapped from Temporary.
func Do(ctx context.Context, maxRetries int, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var tmp *Temporary
		if !errors.As(err, &tmp) {
			return err
		}
		if attempt >= maxRetries {
			return tmp.Err
		}
		wait := Delay(attempt)
		if tmp.After > 0 {
			wait = tmp.After
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(tmp.Err, ctx.Err())
		case <-t.C:
		}
	}
}

// Delay is the backoff before retry number attempt: 200ms doubling, capped at 5s.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 5 * time.Second
	}
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// StatusTemporary reports whether an HTTP status code is worth retrying.
func StatusTemporary(code int) bool {
	return code == 429 || code >= 500
}
