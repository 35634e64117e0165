package queue

import (
	"context"
	"fmt"
	"log"

	"dark_api/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

// RDB backs the task locks and the image cleanup queue.
var RDB *redis.Client

func ConnectRedis() {
	client, err := NewRedisClient(context.Background(), config.AppConfig)
	if err != nil {
		log.Fatalf("Could not connect to Redis at %s: %v", config.AppConfig.RedisAddr, err)
	}
	RDB = client
	log.Printf("Connected to Redis at %s (db %d)", config.AppConfig.RedisAddr, config.AppConfig.RedisDB)
}

// NewRedisClient dials Redis and waits at most cfg.RedisPingTimeout for it to answer.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx := ctx
	if cfg.RedisPingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.RedisPingTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func CloseRedis() {
	if RDB != nil {
		if err := RDB.Close(); err != nil {
			log.Printf("ERROR: Failed to close Redis client: %v", err)
			return
		}
		log.Println("Redis connection closed.")
	}
}
