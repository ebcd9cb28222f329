package config

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and pings it with a short timeout. It
// returns nil when the server is unreachable; callers treat a nil client as
// "rate limiting and caching disabled".
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.RedisAddr(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
