package config

import (
	"context"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

func RedisAddress() string {
	return stringFromEnv("REDIS_ADDRESS", "localhost:6379")
}

// ConnectRedis connects and returns the Redis client and its lock client.
// Unlike a server, a CLI gives up after a few attempts.
func ConnectRedis(ctx context.Context, redisAddr string, attempts int) (*redis.Client, *redislock.Client, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: stringFromEnv("REDIS_PASSWORD", ""),
			DB:       intFromEnv("REDIS_DB", 0),
			PoolSize: 4,
		})
		if err := client.Ping(ctx).Err(); err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, redisAddr)
			return client, redislock.New(client), nil
		} else {
			lastErr = err
			_ = client.Close()
		}
		if attempt == attempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, redisAddr, lastErr, sleep)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, nil, lastErr
}
