package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the managed-backend implementation of Store.  All application
// instances point at the same Redis, which is what makes SetNX a global
// mutual-exclusion primitive.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-connected client.  Callers own the client's
// construction (address, password, TLS) so that this package stays free
// of environment concerns.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return wrap("set", r.client.Set(ctx, key, value, ttl).Err())
}

func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrap("setnx", err)
	}
	return created, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wrap("delete", r.client.Del(ctx, keys...).Err())
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrap("incr", err)
	}
	return n, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrap("expire", r.client.Expire(ctx, key, ttl).Err())
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap("exists", err)
	}
	return n > 0, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, wrap("ttl", err)
	}
	// go-redis reports -2 for a missing key and -1 for no expiry.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (r *Redis) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := r.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, wrap("scan", err)
	}
	return keys, next, nil
}

func (r *Redis) Pipeline() Pipeline {
	return &redisPipeline{pipe: r.client.Pipeline()}
}

func (r *Redis) Close() error { return r.client.Close() }

type redisPipeline struct {
	pipe redis.Pipeliner
}

func (p *redisPipeline) Set(key, value string, ttl time.Duration) {
	p.pipe.Set(context.Background(), key, value, ttl)
}

func (p *redisPipeline) SetNX(key, value string, ttl time.Duration) {
	p.pipe.SetNX(context.Background(), key, value, ttl)
}

func (p *redisPipeline) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.pipe.Del(context.Background(), keys...)
}

func (p *redisPipeline) Exec(ctx context.Context) error {
	_, err := p.pipe.Exec(ctx)
	return wrap("pipeline", err)
}
