package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/photoshare/config"
)

var redisClient *redis.Client

// InitRedis connects the shared Redis client. An empty host or a failed ping leaves
// the client unset so callers fall back to in-process storage.
func InitRedis(cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("redis unavailable at %s, using in-memory fallbacks: %v", rc.Options().Addr, err)
		}
		_ = rc.Close()
		return nil
	}
	redisClient = rc
	return redisClient
}

// CloseRedis closes the shared client. Callers fall back to in-process storage afterwards.
func CloseRedis() error {
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	return err
}

// GetRedis returns the shared Redis client, or nil when Redis is not configured.
func GetRedis() *redis.Client {
	return redisClient
}
