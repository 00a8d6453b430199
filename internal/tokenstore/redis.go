package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier keeps the token under a single key with no expiry, so it
// survives client restarts the way the durable file does.
type RedisTier struct {
	Client *redis.Client
	key    string
}

// NewRedisTier connects to redis with short timeouts.
func NewRedisTier(addr, key string) *RedisTier {
	if key == "" {
		key = "rollbook:token"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisTier{Client: client, key: key}
}

func (r *RedisTier) Get(ctx context.Context) (string, bool, error) {
	token, err := r.Client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, token != "", nil
}

func (r *RedisTier) Set(ctx context.Context, token string) error {
	return r.Client.Set(ctx, r.key, token, 0).Err()
}

func (r *RedisTier) Delete(ctx context.Context) error {
	return r.Client.Del(ctx, r.key).Err()
}

// Healthy verifies redis connectivity.
func (r *RedisTier) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *RedisTier) Close() error {
	return r.Client.Close()
}
