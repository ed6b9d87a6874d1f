// Package backoff provides the delay policies used between retry attempts.
//
// Two shapes are in use and are configured independently:
//
//   - Linear: attempt × Base, unbounded (outbound HTTP retries)
//   - CappedLinear: min(attempt × Step, Max) (Redis reconnects)
package backoff

import (
	"context"
	"time"
)

// Policy returns the delay to wait before the given retry attempt.
// Attempts are 1-based: the first retry is attempt 1.
type Policy interface {
	Delay(attempt int) time.Duration
}

// Linear grows the delay by Base on every attempt with no upper bound.
type Linear struct {
	Base time.Duration
}

// Delay implements Policy.
func (l Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * l.Base
}

// CappedLinear grows the delay by Step on every attempt up to Max.
type CappedLinear struct {
	Step time.Duration
	Max  time.Duration
}

// Delay implements Policy.
func (c CappedLinear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := time.Duration(attempt) * c.Step
	if c.Max > 0 && d > c.Max {
		return c.Max
	}
	return d
}

// Func adapts a plain function to Policy.
type Func func(attempt int) time.Duration

// Delay implements Policy.
func (f Func) Delay(attempt int) time.Duration {
	return f(attempt)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
// It returns ctx.Err() when the context ended the wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
