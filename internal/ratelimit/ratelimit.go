// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	RPS           float64       // Sustained requests per second per key
	Burst         int           // Requests allowed in a burst
	IdleTTL       time.Duration // Drop a key's bucket after this much inactivity
	CleanupPeriod time.Duration // How often to clean up idle buckets
}

// DefaultTurnConfig limits how fast one user can start model turns.
func DefaultTurnConfig() *Config {
	return &Config{
		RPS:           0.5,
		Burst:         5,
		IdleTTL:       30 * time.Minute,
		CleanupPeriod: 10 * time.Minute,
	}
}

// DefaultAuthConfig returns sensible defaults for login and registration
func DefaultAuthConfig() *Config {
	return &Config{
		RPS:           1.0 / 60, // one attempt per minute sustained
		Burst:         5,
		IdleTTL:       30 * time.Minute,
		CleanupPeriod: 30 * time.Minute,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key (user id or client IP).
type Limiter struct {
	config  *Config
	buckets map[string]*bucket
	mu      sync.Mutex
	stopCh  chan struct{}
	once    sync.Once
	now     func() time.Time
}

// Info describes the outcome of one Allow call.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// New creates a limiter and starts its cleanup loop. Call Close to stop it.
func New(config *Config) *Limiter {
	l := &Limiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	if config.CleanupPeriod > 0 {
		go l.cleanupLoop()
	}
	return l
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	info := Info{Limit: l.config.Burst}
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return info
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		info.RetryAfter = delay
		return info
	}
	info.Allowed = true
	info.Remaining = int(b.limiter.TokensAt(now))
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return info
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.config.IdleTTL {
			delete(l.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stopCh) })
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	// Behind a proxy the first forwarded address is the client.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}
