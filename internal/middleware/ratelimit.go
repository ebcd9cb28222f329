package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/planbox/internal/apperr"
	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/logging"
)

// tokenBucket refills one token per interval up to capacity and takes one
// token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now_ms
end

if interval_ms > 0 then
  local steps = math.floor(math.max(0, now_ms - last) / interval_ms)
  if steps > 0 then
    tokens = math.min(capacity, tokens + steps)
    last = last + steps * interval_ms
  end
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', key, ttl_seconds)
return {allowed, tokens, retry_ms}
`)

// RateLimit throttles requests per client IP and route with a token bucket
// kept in Redis. Without Redis, or when disabled, it passes everything
// through. A Redis failure lets the request in.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	ttl := int64(cfg.TTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := rateKey(cfg.Prefix, c)

			vals, err := tokenBucket.Run(ctx, rdb, []string{key},
				time.Now().UnixMilli(), cfg.Capacity, cfg.RefillEvery.Milliseconds(), ttl).Int64Slice()
			if err != nil || len(vals) != 3 {
				log.Warn(ctx, "rate limiter unavailable", "key", key, "err", err)
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if allowed {
				return next(c)
			}

			secs := int(math.Ceil(float64(retryMs) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Info(ctx, "rate limited", "key", key, "retry_ms", retryMs)
			res := apperr.Map(apperr.ErrRateLimited)
			return c.JSON(http.StatusTooManyRequests, res.Payload)
		}
	}
}

func rateKey(prefix string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{prefix, "ip", ip, "route", c.Request().Method + " " + c.Path()}, ":")
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }
