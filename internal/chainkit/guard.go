package chainkit

import (
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// endpointGuard caches one circuit breaker and one rate limiter per RPC
// host, created lazily with double-checked locking (mirrors the
// teacher's internal/net/ratelimit.Limiter.getLimiter).
type endpointGuard struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newEndpointGuard(rps float64, burst int) *endpointGuard {
	return &endpointGuard{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Host
}

func (g *endpointGuard) breakerFor(endpoint string) *gobreaker.CircuitBreaker {
	host := hostOf(endpoint)

	g.mu.RLock()
	cb, ok := g.breakers[host]
	g.mu.RUnlock()
	if ok {
		return cb
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[host]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	cb = gobreaker.NewCircuitBreaker(settings)
	g.breakers[host] = cb
	return cb
}

func (g *endpointGuard) limiterFor(endpoint string) *rate.Limiter {
	host := hostOf(endpoint)

	g.mu.RLock()
	l, ok := g.limiters[host]
	g.mu.RUnlock()
	if ok {
		return l
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[host]; ok {
		return l
	}

	l = rate.NewLimiter(rate.Limit(g.rps), g.burst)
	g.limiters[host] = l
	return l
}
