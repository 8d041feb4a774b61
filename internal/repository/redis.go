package repository

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// InitRedis accepts either a bare host:port or a redis:// URL.
func InitRedis(addr string, password string, db int) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		if password != "" {
			parsed.Password = password
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}
