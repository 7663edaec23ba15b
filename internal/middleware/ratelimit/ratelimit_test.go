package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 2, Now: clock.Now})
	defer rl.Stop()

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"), "keys are independent")

	clock.Advance(time.Minute)
	assert.True(t, rl.Allow("alice"))

	m := rl.GetMetrics()
	assert.Equal(t, int64(4), m.Allowed)
	assert.Equal(t, int64(1), m.Rejected)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestLimiterCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	rl := NewLimiter(Config{RequestsPerMinute: 1, Now: clock.Now})
	defer rl.Stop()

	rl.Allow("alice")
	clock.Advance(3 * time.Minute)
	rl.cleanupStaleEntries()
	assert.Equal(t, int64(0), rl.GetMetrics().ClientCount)
}

func TestMiddlewareSetsRetryAfter(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 1, Now: clock.Now})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "alice" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	clock.Advance(20 * time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "40", rec.Header().Get("Retry-After"))
}
