package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/gyan/internal/domain"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the rate at which a key regains attempts.
	RequestsPerSecond float64

	// BurstSize is how many attempts a fresh key may make at once.
	BurstSize int

	// CleanupInterval is how often idle keys are forgotten.
	CleanupInterval time.Duration

	// KeyFunc names the caller. Defaults to VisitorOrClientIP.
	KeyFunc func(r *http.Request) string
}

// StrictRateLimiterConfig limits payment and promo code attempts: a burst
// of five, then one per second per visitor.
func StrictRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
		KeyFunc:           VisitorOrClientIP,
	}
}

// bucket is a token bucket. Callers hold RateLimiter.mu.
type bucket struct {
	tokens float64
	seen   time.Time
}

// take refills b for the time since it was last seen and spends one token
// if there is one.
func (b *bucket) take(now time.Time, rate float64, burst int) bool {
	b.tokens = min(float64(burst), b.tokens+now.Sub(b.seen).Seconds()*rate)
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter keeps one token bucket per caller in memory. Buckets are
// local to the process; each instance limits independently.
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter starts a limiter. Call Stop to end its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = VisitorOrClientIP
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	rl := &RateLimiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow spends one attempt for key and reports whether it was available.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), seen: now}
		rl.buckets[key] = b
	}
	return b.take(now, rl.config.RequestsPerSecond, rl.config.BurstSize)
}

// sweep forgets keys idle for a full cleanup interval. Such a bucket
// would be full again anyway.
func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.CleanupInterval)
	n := 0
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware rejects callers that are out of attempts with 429 and a
// Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.config.RequestsPerSecond > 0 && rl.config.RequestsPerSecond < 1 {
		retryAfter = strconv.Itoa(int(1/rl.config.RequestsPerSecond + 0.5))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.config.KeyFunc(r)) {
			w.Header().Set("Retry-After", retryAfter)
			respondTooManyRequests(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VisitorOrClientIP keys by visitor id, falling back to the client IP.
func VisitorOrClientIP(r *http.Request) string {
	if id := domain.VisitorFromContext(r.Context()); id != "" {
		return "visitor:" + id
	}
	if ip := GetClientIPFromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + GetClientIP(r)
}
