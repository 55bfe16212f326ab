package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP and forgets idle IPs.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(rps float64, burst int, idle time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Evict drops visitors idle for longer than the idle window.
func (l *IPRateLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	evicted := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			evicted++
		}
	}
	return evicted
}

// Middleware rejects requests over the limit with 429.
func (l *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
