package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter allows a fixed number of requests per client per one-minute window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	now     func() time.Time

	requestsPerMinute int
	cleanupInterval   time.Duration

	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	allowed  atomic.Int64
	rejected atomic.Int64
}

type window struct {
	start    time.Time
	requests int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	rl := &Limiter{
		clients:           make(map[string]*window),
		now:               config.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
		stopCleanup:       make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Allow counts one request for key and reports whether it fits the window.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		rl.clients[key] = &window{start: now, requests: 1}
		rl.allowed.Add(1)
		return true
	}

	w.requests++
	if w.requests > rl.requestsPerMinute {
		rl.rejected.Add(1)
		return false
	}
	rl.allowed.Add(1)
	return true
}

// retryAfter returns the seconds until key's window resets.
func (rl *Limiter) retryAfter(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.clients[key]
	if !ok {
		return 0
	}
	secs := int((time.Minute - rl.now().Sub(w.start)).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * time.Minute)
	for key, w := range rl.clients {
		if w.start.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() { close(rl.stopCleanup) })
}

type Metrics struct {
	Allowed     int64 `json:"allowed"`
	Rejected    int64 `json:"rejected"`
	ClientCount int64 `json:"client_count"`
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	clients := int64(len(rl.clients))
	rl.mu.Unlock()
	return Metrics{
		Allowed:     rl.allowed.Load(),
		Rejected:    rl.rejected.Load(),
		ClientCount: clients,
	}
}

// Middleware rejects requests over the limit. keyFn picks the bucket, usually
// the user id falling back to the client IP. onLimit writes the rejection;
// when nil a plain 429 is sent.
func (rl *Limiter) Middleware(keyFn func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !rl.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter(key)))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
