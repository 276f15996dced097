package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthTimeout bounds a single Redis health ping.
const HealthTimeout = 500 * time.Millisecond

// Redis is the connection shared by the per-user settings store and the
// settings-sync queue.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds a lazily connecting client. Timeouts are short because
// every caller sits behind an HTTP request or the sync worker loop.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{Client: client, addr: addr}
}

var errNoRedis = errors.New("redis not configured")

// Ping checks connectivity within HealthTimeout.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errNoRedis
	}
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", r.addr, err)
	}
	return nil
}

// Healthy is Ping in the shape /healthz expects.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
