package worker

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a token bucket.
type RateLimiter struct {
	lastSeen time.Time
	rate     float64
	tokens   float64
	burst    int
	mu       sync.Mutex
}

// NewRateLimiter allows rate requests per second with bursts of up to burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastSeen: time.Now(),
	}
}

// Allow takes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens = min(rl.tokens+now.Sub(rl.lastSeen).Seconds()*rl.rate, float64(rl.burst))
	rl.lastSeen = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

func (rl *RateLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastSeen
}

// PerClientRateLimiter keeps one bucket per client address.
type PerClientRateLimiter struct {
	clients     map[string]*RateLimiter
	lastCleanup time.Time
	rate        float64
	burst       int
	rejected    int64
	mu          sync.Mutex
}

// clientIdleTTL is how long an unused bucket is kept.
const clientIdleTTL = 10 * time.Minute

// NewPerClientRateLimiter creates a per-client limiter.
func NewPerClientRateLimiter(rate float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		clients:     make(map[string]*RateLimiter),
		rate:        rate,
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether client may make another request.
func (p *PerClientRateLimiter) Allow(client string) bool {
	p.mu.Lock()
	rl, ok := p.clients[client]
	if !ok {
		rl = NewRateLimiter(p.rate, p.burst)
		p.clients[client] = rl
	}
	if time.Since(p.lastCleanup) > clientIdleTTL {
		for key, c := range p.clients {
			if key != client && time.Since(c.idleSince()) > clientIdleTTL {
				delete(p.clients, key)
			}
		}
		p.lastCleanup = time.Now()
	}
	p.mu.Unlock()

	if rl.Allow() {
		return true
	}
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
	return false
}

// Stats returns limiter statistics.
func (p *PerClientRateLimiter) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"clients":  len(p.clients),
		"rejected": p.rejected,
		"rate":     p.rate,
		"burst":    p.burst,
	}
}

// WriteRateLimit throttles mutating requests per client. Reads are not limited.
func WriteRateLimit(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			client := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				client = host
			}
			if !limiter.Allow(client) {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				writeProblem(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
