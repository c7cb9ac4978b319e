package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache membungkus operasi redis kecil yang dipakai jalur cache status.
// Memenuhi interface sempit di httpx (Get) dan statuscache (Exists+Set),
// jadi keduanya bisa dites dengan fake in-memory.
type Cache struct {
	RDB *redis.Client
}

func (c Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (c Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.RDB.Exists(ctx, key).Result()
	return n > 0, err
}

func (c Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.RDB.Set(ctx, key, value, ttl).Err()
}
