package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/handler"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"golang.org/x/time/rate"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimitPolicy is a token bucket: Burst requests at once, refilled at
// one token per Every.
type RateLimitPolicy struct {
	Name  string // metric label
	Every time.Duration
	Burst int
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	policy  RateLimitPolicy
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
	quit    chan struct{}
	once    sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop to
// end the loop.
func NewRateLimiter(policy RateLimitPolicy, logger *slog.Logger) *RateLimiter {
	rl := newRateLimiter(policy, logger, time.Now)
	go rl.cleanupLoop()
	return rl
}

func newRateLimiter(policy RateLimitPolicy, logger *slog.Logger, now func() time.Time) *RateLimiter {
	// A bucket is idle once it would have refilled completely.
	idle := policy.Every * time.Duration(policy.Burst)
	if idle < time.Minute {
		idle = time.Minute
	}
	return &RateLimiter{
		policy:  policy,
		idleTTL: idle,
		logger:  logger,
		now:     now,
		entries: make(map[string]*limiterEntry),
		quit:    make(chan struct{}),
	}
}

// Allow reports whether key may proceed now. When it may not, retryAfter is
// how long until the next token.
func (rl *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	entry := rl.entries[key]
	if entry == nil {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(rl.policy.Every), rl.policy.Burst)}
		rl.entries[key] = entry
		metrics.RateLimitKeys.WithLabelValues(rl.policy.Name).Set(float64(len(rl.entries)))
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, rl.policy.Every
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Reset forgets key, e.g. after a successful login.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.quit) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweepIdle()
		case <-rl.quit:
			return
		}
	}
}

// sweepIdle drops buckets untouched for longer than idleTTL.
func (rl *RateLimiter) sweepIdle() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.entries {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.entries, key)
		}
	}
	metrics.RateLimitKeys.WithLabelValues(rl.policy.Name).Set(float64(len(rl.entries)))
}

// Limit returns middleware that rate limits requests by client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		ok, retryAfter := rl.Allow(clientIP)
		if !ok {
			metrics.RateLimitRejections.WithLabelValues(rl.policy.Name).Inc()
			rl.logger.Warn("rate limit exceeded",
				"limiter", rl.policy.Name,
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			secs := int(math.Ceil(retryAfter.Round(time.Millisecond).Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			handler.ErrorResponse(w, r, rl.logger, domain.RateLimit("middleware.RateLimit"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Endpoint limiters
// =============================================================================

// EndpointRateLimiters groups the limiters for credential and payment
// endpoints.
type EndpointRateLimiters struct {
	Login    *RateLimiter
	Register *RateLimiter
	Verify   *RateLimiter
}

// NewEndpointRateLimiters creates limiters with these defaults:
//   - login: burst 5, one more every 3 minutes
//   - register: burst 3, one more every 20 minutes
//   - payment verify: burst 10, one more every 30 seconds
func NewEndpointRateLimiters(logger *slog.Logger) *EndpointRateLimiters {
	return &EndpointRateLimiters{
		Login:    NewRateLimiter(RateLimitPolicy{Name: "login", Every: 3 * time.Minute, Burst: 5}, logger),
		Register: NewRateLimiter(RateLimitPolicy{Name: "register", Every: 20 * time.Minute, Burst: 3}, logger),
		Verify:   NewRateLimiter(RateLimitPolicy{Name: "verify", Every: 30 * time.Second, Burst: 10}, logger),
	}
}

// Stop ends every cleanup loop.
func (e *EndpointRateLimiters) Stop() {
	e.Login.Stop()
	e.Register.Stop()
	e.Verify.Stop()
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
