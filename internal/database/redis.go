package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// InitRedis returns nil when Redis is unreachable; callers run without a cache.
func InitRedis(ctx context.Context) *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	var opts *redis.Options
	if url := viper.GetString("redis.url"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			slog.Warn("invalid REDIS_URL, continuing without Redis", "error", err)
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     viper.GetString("redis.host") + ":" + viper.GetString("redis.port"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		}
	}
	opts.DialTimeout = 5 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis connection failed, continuing without Redis", "addr", opts.Addr, "error", err)
		rdb.Close()
		return nil
	}

	slog.Info("redis connection established", "addr", opts.Addr)
	return rdb
}
