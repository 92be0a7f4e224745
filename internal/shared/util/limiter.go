package util

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used to throttle progress reporting.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows perSecond events per second with the given burst. A
// non-positive rate never throttles.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow reports whether an event may happen now and consumes a token if so.
func (l *Limiter) Allow() bool {
	return l.inner.AllowN(time.Now(), 1)
}
