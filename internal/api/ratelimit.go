package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

const DefaultLimiterBurst = 50

// Limiter is a process-wide token bucket in front of the decide route. A nil Limiter admits
// everything.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns nil when rps is not positive.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = DefaultLimiterBurst
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			_ = writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
