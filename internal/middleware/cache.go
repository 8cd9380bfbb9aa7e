package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/DoHyunDaniel/reservation-api-project/internal/config"
)

// cachedResponse is what the cache stores per key.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.truncated = true
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		tail = "route:" + c.Path()
	case "method_route":
		tail = "method:" + r.Method + ":route:" + c.Path()
	case "method_route_query":
		tail = "method:" + r.Method + ":route:" + c.Path() + ":q:" + r.URL.RawQuery
	default:
		tail = "route:" + c.Path() + ":q:" + r.URL.RawQuery
	}
	return fmt.Sprintf("%s:%x", cfg.Prefix, sha1.Sum([]byte(tail)))
}

// NewRedisCache caches successful responses of public, anonymous requests
// in Redis. Requests carrying an Authorization header always bypass it, so
// per-user reservation data is never shared between callers.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[req.Method] || req.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			key := cacheKey(cfg, c)

			if raw, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					h := c.Response().Header()
					for k, vals := range hit.Header {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}

			entry := cachedResponse{Status: cw.status, Header: c.Response().Header().Clone(), Body: cw.buf.Bytes()}
			entry.Header.Del("X-Cache")
			payload, err := json.Marshal(entry)
			if err != nil {
				return nil
			}
			// The request context may already be done once the body is flushed.
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
				slog.Warn("response cache write failed", slog.String("key", key), slog.Any("error", err))
			}
			return nil
		}
	}
}
