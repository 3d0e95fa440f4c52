package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/sweeper"
)

// JobRateLimit is the sweeper job name for limiter pruning.
const JobRateLimit = "ratelimit"

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL is how long an unused client limiter is kept.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		IdleTTL:           3 * time.Minute,
	}
}

// PerWindow builds a config allowing n requests per window, all of which may
// arrive at once.
func PerWindow(n int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: float64(n) / window.Seconds(),
		BurstSize:         n,
		IdleTTL:           window,
	}
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	cfg     RateLimitConfig
	now     func() time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*client),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if c, ok := rl.clients[key]; ok {
		c.seen = now
		return c.lim
	}
	l := rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)
	rl.clients[key] = &client{lim: l, seen: now}
	return l
}

// Prune drops limiters idle for longer than IdleTTL and returns how many were
// removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	cutoff := rl.now().Add(-rl.cfg.IdleTTL)
	for key, c := range rl.clients {
		if c.seen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// PruneJob prunes idle clients from every limiter each interval. Nil
// limiters are skipped.
func PruneJob(every time.Duration, logger zerolog.Logger, limiters ...*RateLimiter) sweeper.Job {
	return sweeper.Job{
		Name:     JobRateLimit,
		Interval: every,
		Run: func(context.Context) error {
			removed := 0
			for _, rl := range limiters {
				if rl != nil {
					removed += rl.Prune()
				}
			}
			if removed > 0 {
				logger.Debug().Int("count", removed).Msg("idle rate limit clients pruned")
			}
			return nil
		},
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientKey prefers the authenticated profile over the remote address.
func clientKey(c echo.Context) string {
	if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
		return "profile:" + id.ProfileID.String()
	}
	return "ip:" + c.RealIP()
}

// Middleware rejects requests above the configured rate with 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limitHeader := strconv.Itoa(rl.cfg.BurstSize)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lim := rl.get(clientKey(c))
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)

			r := lim.ReserveN(rl.now(), 1)
			if !r.OK() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			if delay := r.DelayFrom(rl.now()); delay > 0 {
				r.CancelAt(rl.now())
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
