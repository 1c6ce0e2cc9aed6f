// Package ratelimit throttles requests per client IP with token buckets.
package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

const tooManyRequestsMessage = "Too many requests"

const unknownClient = "unknown"

type clientIPKey struct{}

// Config controls the limiter.
type Config struct {
	// Rate is the number of requests per second allowed per key.
	Rate rate.Limit
	// Burst is the bucket size.
	Burst int
	// TTL drops idle visitors after this long.
	TTL time.Duration
	// KeyFunc picks the bucket, the client IP by default.
	KeyFunc func(router.Context) string
	// Now is used for visitor bookkeeping.
	Now func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps a token bucket per key.
type Limiter struct {
	cfg Config

	mu       sync.Mutex
	visitors map[string]*visitor
}

func New(cfg Config) *Limiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RequestIP
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Limiter{
		cfg:      cfg,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.visitor(key).AllowN(l.cfg.Now(), 1)
}

func (l *Limiter) visitor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Now()
	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Cleanup drops visitors idle for longer than the TTL and returns how many
// were removed.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Now()
	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.cfg.TTL {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until stop is closed.
func (l *Limiter) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !l.Allow(l.cfg.KeyFunc(c)) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"message": tooManyRequestsMessage})
			}
			return next(c)
		}
	}
}

// CaptureClientIP is installed on the fiber app ahead of the routes so the
// remote address is available to router middleware.
func CaptureClientIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithClientIP(c.UserContext(), c.IP()))
		return c.Next()
	}
}

// WithClientIP stores ip in ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address stored by CaptureClientIP.
func ClientIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPKey{}).(string)
	return ip, ok && ip != ""
}

// RequestIP keys on the captured client IP, then the first X-Forwarded-For
// entry.
func RequestIP(c router.Context) string {
	if ip, ok := ClientIP(c.Context()); ok {
		return ip
	}
	if fwd := c.Header(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return unknownClient
}
