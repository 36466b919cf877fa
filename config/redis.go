package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the per-patient submission lock and the metric rate limit.
var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

func redisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		opts.DB = n
	}
	return opts
}

// ConnectRedis returns (nil, nil) unless REDIS_ENABLED is true; the service then
// runs without the patient lock and the rate limit.
func ConnectRedis() (*redis.Client, error) {
	var err error
	redisOnce.Do(func() {
		if on, _ := strconv.ParseBool(os.Getenv("REDIS_ENABLED")); !on {
			return
		}

		rdb := redis.NewClient(redisOptions())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err = rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			err = fmt.Errorf("redis ping failed: %w", err)
			return
		}
		redisClient = rdb
	})
	return redisClient, err
}

// GetRedisClient is nil when the lock and rate limit are off.
func GetRedisClient() *redis.Client {
	return redisClient
}

func SetRedisClientForTest(client *redis.Client) {
	redisClient = client
}

func ResetRedisClientForTest() {
	redisClient = nil
	redisOnce = sync.Once{}
}
