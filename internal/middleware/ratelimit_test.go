package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRateLimiter(clock *fakeClock, every time.Duration, burst int) *RateLimiter {
	return newRateLimiter(RateLimitPolicy{Name: "test", Every: every, Burst: burst}, newTestLogger(), clock.Now)
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, time.Minute, 3)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("1.2.3.4")
		require.True(t, ok, "request %d should pass", i+1)
	}

	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.InDelta(t, time.Minute, retry, float64(time.Millisecond))
}

func TestRateLimiter_Refills(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, time.Minute, 1)

	ok, _ := rl.Allow("k")
	require.True(t, ok)

	clock.Advance(20 * time.Second)
	ok, retry := rl.Allow("k")
	assert.False(t, ok)
	assert.InDelta(t, 40*time.Second, retry, float64(time.Millisecond))

	clock.Advance(41 * time.Second)
	ok, _ = rl.Allow("k")
	assert.True(t, ok)
}

func TestRateLimiter_DeniedRequestsDoNotConsume(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, time.Minute, 1)

	ok, _ := rl.Allow("k")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		ok, _ = rl.Allow("k")
		require.False(t, ok)
	}

	clock.Advance(time.Minute + time.Second)
	ok, _ = rl.Allow("k")
	assert.True(t, ok, "rejections must not push the next token further out")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, time.Hour, 1)

	ok, _ := rl.Allow("a")
	require.True(t, ok)
	ok, _ = rl.Allow("a")
	require.False(t, ok)

	ok, _ = rl.Allow("b")
	assert.True(t, ok)
}

func TestRateLimiter_Reset(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, time.Hour, 1)

	_, _ = rl.Allow("a")
	ok, _ := rl.Allow("a")
	require.False(t, ok)

	rl.Reset("a")
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_SweepIdle(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, 10*time.Second, 2) // idle TTL floors at one minute

	_, _ = rl.Allow("old")
	clock.Advance(50 * time.Second)
	_, _ = rl.Allow("recent")
	clock.Advance(20 * time.Second)

	rl.sweepIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.entries, "old")
	assert.Contains(t, rl.entries, "recent")
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimitPolicy{Name: "test", Every: time.Minute, Burst: 1}, newTestLogger())
	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

// =============================================================================
// Limit Middleware Tests
// =============================================================================

func TestLimit_RejectsWithRetryAfter(t *testing.T) {
	clock := newFakeClock()
	rl := newTestRateLimiter(clock, 90*time.Second, 1)
	h := rl.Limit(statusHandler(http.StatusOK))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	h.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)

	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "90", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")

	other := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/login", nil)
	req2.RemoteAddr = "198.51.100.8:4000"
	h.ServeHTTP(other, req2)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"forwarded first hop", "10.0.0.1:1", map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.2"}, "203.0.113.9"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "203.0.113.10"}, "203.0.113.10"},
		{"no port", "192.0.2.5", nil, "192.0.2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
