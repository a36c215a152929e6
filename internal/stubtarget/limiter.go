package stubtarget

import (
	"sync"
	"time"
)

// Limiter is a per-key token bucket. Each key gets a bucket of Burst
// tokens refilled continuously over Window; a request without a token
// is rejected.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	burst  float64
	window time.Duration

	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter allowing burst requests per window per key.
func NewLimiter(burst int, window time.Duration) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Limiter{
		burst:   float64(burst),
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether a request for key may proceed, consuming a token
// if so.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	// Refill proportionally to elapsed time, capped at the burst size.
	elapsed := now.Sub(b.last)
	b.tokens += l.burst * float64(elapsed) / float64(l.window)
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset clears all buckets.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}
