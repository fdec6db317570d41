package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store backend. It translates redis.Nil into
// ErrNotFound and connectivity failures into ErrUnavailable so callers never
// need to import go-redis themselves.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a Redis-backed Store from a connection URL
// (redis://host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisWithClient wraps an already-constructed client, primarily for
// tests against a miniredis instance.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUnavailable
	}
	return ErrUnavailable
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Redis) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, translate(err)
	}
	return ok, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

// Take uses Redis's atomic GETDEL so the read-and-delete happens server
// side in one round trip; under concurrent callers, Redis guarantees at
// most one receives the value.
func (r *Redis) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Redis) SAdd(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Redis) SRem(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

var _ Store = (*Redis)(nil)
