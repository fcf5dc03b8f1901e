package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

// RateLimiter keeps one token bucket per client IP. Buckets refill at
// perMinute/60 tokens a second and hold at most perMinute tokens.
type RateLimiter struct {
	name      string
	limit     rate.Limit
	burst     int
	now       func() time.Time
	onLimited func(name string)

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter for one route group. perMinute <= 0
// disables limiting.
func NewRateLimiter(name string, perMinute int) *RateLimiter {
	rl := &RateLimiter{
		name:    name,
		burst:   perMinute,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
	if perMinute > 0 {
		rl.limit = rate.Limit(float64(perMinute) / 60)
	}
	return rl
}

// OnLimited registers a hook called for every rejected request.
func (rl *RateLimiter) OnLimited(fn func(name string)) *RateLimiter {
	rl.onLimited = fn
	return rl
}

// Allow reports whether key may make a request now and, if not, how long it
// should wait.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.burst <= 0 {
		return true, 0
	}
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastSweep) > limiterSweepInterval {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	reservation := c.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects over-budget clients with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Allow(ClientIP(r))
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		logger.WarnCtx(r.Context(), "Rate limit exceeded",
			"limiter", rl.name,
			"client_ip", ClientIP(r),
			"retry_after_ms", wait.Milliseconds())
		if rl.onLimited != nil {
			rl.onLimited(rl.name)
		}

		w.Header().Set(utils.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		errors.HandleError(r.Context(), w, errors.NewRateLimitError())
	})
}
