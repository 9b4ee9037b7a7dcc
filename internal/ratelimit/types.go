package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides fixed-window rate limit checks. The window length is
// passed per call so different operations can throttle on different horizons.
type Limiter interface {
	Allow(ctx context.Context, key string, limit, windowSeconds int, now time.Time) (Result, error)
}
