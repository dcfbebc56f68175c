package history

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"dreamsun/config"
	"dreamsun/generation"
)

const keyPrefix = "dreamsun:history:"

// listCommands is the subset of the Redis client used by RedisStore.
type listCommands interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps history in one Redis list per owner.
type RedisStore struct {
	rdb   listCommands
	limit int64
	ttl   time.Duration
}

// NewRedisStore stores at most limit results per owner. Lists expire after
// ttl without writes; zero keeps them forever.
func NewRedisStore(rdb listCommands, limit int, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, limit: int64(limit), ttl: ttl}
}

// Connect opens a Redis client from cfg and checks it with a ping.
func Connect(ctx context.Context, cfg config.RedisSettings) (*redis.Client, error) {
	log.Printf("Connecting to Redis: %s", cfg.Addr)

	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		TLSConfig:    tlsConfig,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func key(owner string) string {
	return keyPrefix + owner
}

func (s *RedisStore) Add(ctx context.Context, owner string, result generation.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	k := key(owner)
	if err := s.rdb.LPush(ctx, k, data).Err(); err != nil {
		return fmt.Errorf("failed to push history entry: %w", err)
	}
	if s.limit > 0 {
		if err := s.rdb.LTrim(ctx, k, 0, s.limit-1).Err(); err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, k, s.ttl).Err(); err != nil {
			return fmt.Errorf("failed to set history expiry: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, owner string) ([]generation.Result, error) {
	items, err := s.rdb.LRange(ctx, key(owner), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]generation.Result, 0, len(items))
	for _, item := range items {
		var r generation.Result
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			log.Printf("Skipping malformed history entry for %s: %v", owner, err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	if err := s.rdb.Del(ctx, key(owner)).Err(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
