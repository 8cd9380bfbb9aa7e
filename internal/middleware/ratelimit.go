package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/DoHyunDaniel/reservation-api-project/internal/config"
)

// tokenBucketScript refills and takes one token atomically in Redis so all
// replicas share one bucket per key.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + intervals * refill_tokens)
			last_refill = last_refill + intervals * interval_ms
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

type bucketResult struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

// NewTokenBucket limits requests per key (see RATE_LIMIT_KEY_STRATEGY).
// Buckets live in Redis when rdb is set; without Redis, or while Redis
// errors, an in-process limiter with the same capacity and refill rate
// takes over so the API never runs unlimited.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	local := newLocalBuckets(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)

			var (
				res bucketResult
				err error
			)
			if rdb != nil {
				if res, err = redisTake(c, cfg, rdb, key); err != nil {
					slog.Warn("rate limit redis unavailable, using local buckets", slog.String("key", key), slog.Any("error", err))
				}
			}
			if rdb == nil || err != nil {
				res = local.take(key)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !res.allowed {
				secs := int(math.Ceil(res.retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "rate limit exceeded",
					"code":        "TOO_MANY_REQUESTS",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func redisTake(c echo.Context, cfg config.RateLimitConfig, rdb *redis.Client, key string) (bucketResult, error) {
	vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
		time.Now().UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(vals) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected token bucket reply %v", vals)
	}
	return bucketResult{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

type localEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localBuckets is the in-process fallback. Idle entries are swept after
// the configured TTL.
type localBuckets struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	entries   map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
	perSecond := float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()
	return &localBuckets{
		limit:   rate.Limit(perSecond),
		burst:   cfg.Capacity,
		ttl:     cfg.TTL,
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

func (b *localBuckets) take(key string) bucketResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.Sub(b.lastSweep) > b.ttl {
		for k, e := range b.entries {
			if now.Sub(e.seen) > b.ttl {
				delete(b.entries, k)
			}
		}
		b.lastSweep = now
	}
	e, ok := b.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.entries[key] = e
	}
	e.seen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return bucketResult{retry: delay}
	}
	remaining := int64(e.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return bucketResult{allowed: true, remaining: remaining}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userKey(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
