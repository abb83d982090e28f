// Package kv provides typed operations over the shared key/value store.
// Every tenant-owned key is prefixed with "tenant:{tenant_id}:" so no two
// tenants can collide even when the logical key is identical.
package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/specforge/specforge/pkg/config"
)

// ErrUnavailable classifies connectivity failures so callers can apply
// their fail-open / fail-closed policy.
var ErrUnavailable = errors.New("kv store unavailable")

// Store wraps the Redis client with typed, prefix-scoped operations.
type Store struct {
	client *redis.Client
}

// NewStore connects to the key/value store.
func NewStore(cfg config.RedisConfig) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client}
}

// NewStoreFromClient wraps an existing client (useful for testing).
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// TenantKey builds a tenant-scoped key. There is no unscoped variant for
// tenant-owned state; infrastructure keys (rate limits) build their own.
func TenantKey(tenantID, key string) string {
	return "tenant:" + tenantID + ":" + key
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// --- String / counter operations ---

// Set stores a string value with a TTL (0 = no expiry).
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify("set", err)
	}
	return nil
}

// Get returns the value, or ("", false, nil) when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get", err)
	}
	return val, true, nil
}

// Exists reports whether the key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, classify("exists", err)
	}
	return n > 0, nil
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return classify("delete", err)
	}
	return nil
}

// Incr increments a counter, returning the new value.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, classify("incr", err)
	}
	return n, nil
}

// Expire sets a TTL on an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return classify("expire", err)
	}
	return nil
}

// --- Set operations ---

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SAdd(ctx, key, args...).Err(); err != nil {
		return classify("sadd", err)
	}
	return nil
}

// SMembers returns all members of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, classify("smembers", err)
	}
	return members, nil
}

// --- Sorted-set operations (rate limiter substrate) ---

// ZAdd adds a member with an integer-second score.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return classify("zadd", err)
	}
	return nil
}

// ZRemRangeByScore evicts members with score in [min, max].
func (s *Store) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	if err := s.client.ZRemRangeByScore(ctx, key, min, max).Err(); err != nil {
		return classify("zremrangebyscore", err)
	}
	return nil
}

// ZCard returns the member count.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, classify("zcard", err)
	}
	return n, nil
}

// ZRangeWithScores returns members ordered by score, with scores.
func (s *Store) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, classify("zrange", err)
	}
	return zs, nil
}

// --- List operations ---

// LPush prepends values to a list.
func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := s.client.LPush(ctx, key, args...).Err(); err != nil {
		return classify("lpush", err)
	}
	return nil
}

// RPop removes and returns the last element, or ("", false, nil) when empty.
func (s *Store) RPop(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("rpop", err)
	}
	return val, true, nil
}

// --- Pub/sub operations ---

// Publish broadcasts a payload on a channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return classify("publish", err)
	}
	return nil
}

// Subscribe opens a subscription on the given channels. The caller owns
// the returned PubSub and must Close it.
func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, channels...)
}

// classify wraps errors, tagging connectivity failures with ErrUnavailable
// so callers can distinguish them from API errors.
func classify(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("kv %s: %w: %w", op, ErrUnavailable, err)
	}
	return fmt.Errorf("kv %s failed: %w", op, err)
}
