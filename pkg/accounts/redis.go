package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one JSON record per salt under a key prefix, created
// with SETNX
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings for RedisStore
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects to Redis
func NewRedisStore(cfg RedisConfig) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.KeyPrefix)
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(salt Hash) string {
	return s.prefix + salt.Hex()
}

// Create implements Store
func (s *RedisStore) Create(ctx context.Context, rec Record) (Record, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to marshal record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(rec.Salt), data, 0).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to store record: %w", err)
	}
	if ok {
		return rec, true, nil
	}
	existing, err := s.Get(ctx, rec.Salt)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, salt Hash) (Record, error) {
	data, err := s.client.Get(ctx, s.key(salt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close releases the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
