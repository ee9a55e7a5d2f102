package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions is the subset of go-redis options this service tunes.
// Zero values fall back to conservative defaults.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	DialTimeout time.Duration
	IOTimeout   time.Duration
	PoolSize    int
	PingTimeout time.Duration
}

func (o RedisOptions) client() *redis.Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 3 * time.Second
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = 2 * time.Second
	}
	if o.PoolSize <= 0 {
		o.PoolSize = 10
	}
	return &redis.Options{
		Addr:            o.Addr,
		Password:        o.Password,
		DB:              o.DB,
		DialTimeout:     o.DialTimeout,
		ReadTimeout:     o.IOTimeout,
		WriteTimeout:    o.IOTimeout,
		PoolSize:        o.PoolSize,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// OpenRedis builds a client and fails fast if the server does not answer PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(opts.client())

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
