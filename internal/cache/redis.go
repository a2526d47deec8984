package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a go-redis client with logging helpers.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// Config defines connection parameters for Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

// New returns a Redis client based on provided configuration.
func New(cfg Config, logger *slog.Logger) *Redis {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Redis{
		client: redis.NewClient(opts),
		logger: logger.With("component", "redis"),
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// MarkSeen records a provider message ID so duplicate webhook deliveries can
// be dropped. Returns true when the ID was not seen before. On any Redis
// error it reports the message as unseen so processing degrades to
// at-least-once rather than dropping traffic.
func (r *Redis) MarkSeen(ctx context.Context, messageID string, ttl time.Duration) bool {
	if messageID == "" {
		return true
	}
	ok, err := r.client.SetNX(ctx, "pixzen:seen:"+messageID, 1, ttl).Result()
	if err != nil {
		r.logger.Warn("dedup check failed, processing anyway", "error", err)
		return true
	}
	return ok
}

// Close releases Redis resources.
func (r *Redis) Close() error {
	return r.client.Close()
}
