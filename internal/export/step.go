package export

import (
	"context"
	"time"
)

// WithDeadline wraps step so that it returns false once deadline passes.
func WithDeadline(step StepFunc, deadline time.Time) StepFunc {
	return func(progress float64) bool {
		if !time.Now().Before(deadline) {
			return false
		}
		return step == nil || step(progress)
	}
}

// WithContext wraps step so that it returns false once ctx is done.
func WithContext(ctx context.Context, step StepFunc) StepFunc {
	return func(progress float64) bool {
		if ctx.Err() != nil {
			return false
		}
		return step == nil || step(progress)
	}
}
