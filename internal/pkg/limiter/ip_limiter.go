/*
Package limiter provides per-IP rate limiting for incoming HTTP requests.

Each client IP gets its own token bucket (rate.Limiter). The server mounts
the middleware in front of the WebSocket upgrade endpoint to bound how fast a
single address can open connections. Buckets that refill completely are
dropped by a background sweep so the map does not grow with every address
ever seen.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"collabchat/internal/pkg/errs"
	"collabchat/internal/pkg/logx"
	"collabchat/internal/pkg/resp"

	"golang.org/x/time/rate"
)

// sweepInterval is how often idle token buckets are reclaimed.
const sweepInterval = 3 * time.Minute

// IPRateLimiter hands out one token bucket per client IP address.
type IPRateLimiter struct {
	// mu guards the limits map.
	mu *sync.RWMutex

	// limits maps client IP to its token bucket.
	limits map[string]*rate.Limiter

	// r is the sustained rate allowed per IP, in events per second.
	r rate.Limit

	// b is the burst capacity per IP.
	b int
}

// NewIPRateLimiter returns a limiter allowing rate r with burst b per IP and
// starts the background sweep of idle buckets.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		mu:     &sync.RWMutex{},
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.sweepIdle()

	return i
}

// GetLimiter returns the token bucket for the given IP, creating it on first
// sight. The read lock covers the common case; creation re-checks under the
// write lock.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.RLock()
	limiter, exists := i.limits[ip]
	i.mu.RUnlock()

	if !exists {
		i.mu.Lock()
		limiter, exists = i.limits[ip]
		if !exists {
			limiter = rate.NewLimiter(i.r, i.b)
			i.limits[ip] = limiter
		}
		i.mu.Unlock()
	}

	return limiter
}

// sweepIdle periodically drops buckets that have refilled to full burst.
// A full bucket means the IP has been quiet long enough to forget.
func (i *IPRateLimiter) sweepIdle() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		i.mu.Lock()
		removed := 0
		for ip, limiter := range i.limits {
			if limiter.TokensAt(time.Now()) >= float64(limiter.Burst()) {
				delete(i.limits, ip)
				removed++
			}
		}
		active := len(i.limits)
		i.mu.Unlock()

		logx.Info("Rate limiter sweep finished.", "removed", removed, "active", active)
	}
}

// Middleware rejects requests that exceed the caller IP's budget with a
// 429 response before the wrapped handler runs.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.GetLimiter(ip).Allow() {
			logx.Warn("Request rejected: rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
