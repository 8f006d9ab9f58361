// Package expect provides assertions that poll page state until it matches
// or the timeout elapses.
package expect

import (
	"context"
	"fmt"
	"time"
)

// Condition is a one-shot check of page state. Observed describes what was
// seen and ends up in the failure report.
type Condition struct {
	Expected string
	Check    func(ctx context.Context) (ok bool, observed string, err error)
}

// AssertionError is an expectation that was not met within its timeout.
type AssertionError struct {
	Expected string
	Observed string
	Timeout  time.Duration
	Cause    error // last check error, if any
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("expected %s within %s, observed %s", e.Expected, e.Timeout, e.Observed)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (last check error: %v)", e.Cause)
	}
	return msg
}

func (e *AssertionError) Unwrap() error { return e.Cause }

// Poller retries a Condition every Interval until Timeout.
type Poller struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Eventually returns nil as soon as cond holds. Check errors are retried,
// since the page may be mid-navigation; only ctx cancellation ends the wait
// early. No single check outlives the timeout.
func (p Poller) Eventually(ctx context.Context, cond Condition) error {
	deadline := time.Now().Add(p.Timeout)
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	var observed string
	var lastErr error
	for {
		ok, obs, err := check(ctx, cond, deadline)
		if err == nil && ok {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.failure(cond, observed, ctxErr)
		}
		if err != nil {
			lastErr = err
		} else {
			observed, lastErr = obs, nil
		}
		if !time.Now().Before(deadline) {
			return p.failure(cond, observed, lastErr)
		}

		select {
		case <-ctx.Done():
			return p.failure(cond, observed, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Consistently requires cond to hold on every check for the whole window.
// It fails on the first check that does not hold.
func (p Poller) Consistently(ctx context.Context, cond Condition, window time.Duration) error {
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	for {
		// A check may run past the window by at most one Timeout.
		ok, obs, err := check(ctx, cond, deadline.Add(p.Timeout))
		if err != nil {
			return &AssertionError{Expected: cond.Expected + " throughout", Observed: "check failed", Timeout: window, Cause: err}
		}
		if !ok {
			return &AssertionError{Expected: cond.Expected + " throughout", Observed: obs, Timeout: window}
		}
		if !time.Now().Before(deadline) {
			return nil
		}

		select {
		case <-ctx.Done():
			return &AssertionError{Expected: cond.Expected + " throughout", Observed: obs, Timeout: window, Cause: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func check(ctx context.Context, cond Condition, deadline time.Time) (bool, string, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return cond.Check(ctx)
}

func (p Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return 100 * time.Millisecond
	}
	return p.Interval
}

func (p Poller) failure(cond Condition, observed string, cause error) error {
	if observed == "" {
		observed = "nothing"
	}
	return &AssertionError{Expected: cond.Expected, Observed: observed, Timeout: p.Timeout, Cause: cause}
}
