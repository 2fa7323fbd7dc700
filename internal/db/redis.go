package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeezy-com/stride-track-explore/internal/config"
)

var pingRedisFn = func(ctx context.Context, client *redis.Client) error { return client.Ping(ctx).Err() }

// ConnectRedis returns nil when REDIS_ADDR is empty or the server does not
// answer a ping; callers then run without the relay and redis record store.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pingRedisFn(ctx, client); err != nil {
		slog.Warn("redis unreachable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
