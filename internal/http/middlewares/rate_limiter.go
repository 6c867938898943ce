package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/rueidis"
)

// RateLimiter is a per-IP fixed-window limiter backed by process memory.
func RateLimiter(limit int, window time.Duration) echo.MiddlewareFunc {
	type bucket struct {
		count int
		start time.Time
	}

	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep = time.Now()
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			key := c.RealIP()

			mu.Lock()
			if now.Sub(lastSweep) > window {
				for k, old := range buckets {
					if now.Sub(old.start) > window {
						delete(buckets, k)
					}
				}
				lastSweep = now
			}

			b, ok := buckets[key]
			if !ok || now.Sub(b.start) > window {
				b = &bucket{start: now}
				buckets[key] = b
			}

			if b.count >= limit {
				mu.Unlock()
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			b.count++
			mu.Unlock()

			return next(c)
		}
	}
}

// RedisRateLimiter is the same fixed-window limiter with the counters kept
// in redis, so the limit holds across multiple server processes. Redis
// failures let the request through.
func RedisRateLimiter(client rueidis.Client, prefix string, limit int, window time.Duration) echo.MiddlewareFunc {
	windowSec := int64(window.Seconds())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			slot := time.Now().Unix() / windowSec
			key := fmt.Sprintf("%s:%s:%d", prefix, c.RealIP(), slot)

			count, err := client.Do(
				ctx,
				client.B().Incr().Key(key).Build(),
			).AsInt64()
			if err != nil {
				return next(c)
			}

			if count == 1 {
				_ = client.Do(
					ctx,
					client.B().Expire().Key(key).Seconds(windowSec).Build(),
				).Error()
			}

			if count > int64(limit) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
