package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/F1Square/TripGo-Adv-client/internal/config"
)

// ConnectRedis opens and verifies the local durable store. A nil client with
// nil error means redis is not configured; callers fall back to in-memory
// persistence.
func ConnectRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
