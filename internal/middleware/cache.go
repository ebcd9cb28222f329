package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/planbox/internal/config"
	"github.com/iliyamo/planbox/internal/logging"
)

// generationTTL outlives any cached entry so a bump is never forgotten
// while entries from the previous generation can still be read.
const generationTTL = 24 * time.Hour

// captureWriter tees the response body into buf until limit is exceeded.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct"`
	Body        []byte `json:"b"`
}

// ResponseCache caches successful GET responses per user in Redis. Any
// successful write by the same user bumps that user's generation, which
// orphans every entry cached before it. It must run after RequireSession.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client, log logging.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := userID(c)
			if uid == anonymous {
				return next(c)
			}
			ctx := c.Request().Context()

			if c.Request().Method != http.MethodGet {
				err := next(c)
				if err == nil && c.Response().Status < http.StatusBadRequest {
					if berr := bumpGeneration(ctx, rdb, cfg.Prefix, uid); berr != nil {
						log.Warn(ctx, "cache generation bump failed", "user_id", uid, "err", berr)
					}
				}
				return err
			}

			gen, err := rdb.Get(ctx, generationKey(cfg.Prefix, uid)).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Warn(ctx, "cache unavailable", "err", err)
				return next(c)
			}
			key := entryKey(cfg.Prefix, uid, gen, c.Request())

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cr cachedResponse
				if json.Unmarshal(bs, &cr) == nil {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(cr.Status, cr.ContentType, cr.Body)
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow {
				return nil
			}

			payload, err := json.Marshal(cachedResponse{
				Status:      cw.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			})
			if err == nil {
				// the request context may already be cancelled once the client has its response
				if err := rdb.Set(context.WithoutCancel(ctx), key, payload, cfg.TTL).Err(); err != nil {
					log.Warn(ctx, "cache store failed", "key", key, "err", err)
				}
			}
			return nil
		}
	}
}

func generationKey(prefix, uid string) string {
	return fmt.Sprintf("%s:u:%s:gen", prefix, uid)
}

func entryKey(prefix, uid string, gen int64, r *http.Request) string {
	sum := sha1.Sum([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:u:%s:g:%d:%x", prefix, uid, gen, sum)
}

func bumpGeneration(ctx context.Context, rdb *redis.Client, prefix, uid string) error {
	key := generationKey(prefix, uid)
	ctx = context.WithoutCancel(ctx)
	pipe := rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, generationTTL)
	_, err := pipe.Exec(ctx)
	return err
}
