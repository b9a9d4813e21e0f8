package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tos-network/hashfarm/internal/util"
)

// DefaultKeyPrefix namespaces every key written by RedisStore.
const DefaultKeyPrefix = "hashfarm:"

const (
	// Key suffixes
	keySave       = "save"
	keySaveBackup = "save:backup"
	keySaveMeta   = "save:meta"
	keyBlacklist  = "blacklist"
	keyWhitelist  = "whitelist"
)

// RedisStore keeps the record in Redis and also holds the IP black/white lists
// used by the rate-limit policy.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(url, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	util.Info("Connected to Redis at ", url)
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) key(suffix string) string {
	return r.prefix + suffix
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Save replaces the record in one transaction, moving the previous record to
// the backup key.
func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	prev, err := r.client.Get(ctx, r.key(keySave)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read previous save: %w", err)
	}

	pipe := r.client.TxPipeline()
	if prev != nil {
		pipe.Set(ctx, r.key(keySaveBackup), prev, 0)
	}
	pipe.Set(ctx, r.key(keySave), data, 0)
	pipe.HSet(ctx, r.key(keySaveMeta), "savedAt", time.Now().Unix(), "size", len(data))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load returns the current record.
func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	return r.get(ctx, keySave)
}

// LoadBackup returns the previous record.
func (r *RedisStore) LoadBackup(ctx context.Context) ([]byte, error) {
	return r.get(ctx, keySaveBackup)
}

func (r *RedisStore) get(ctx context.Context, suffix string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(suffix)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// SavedAt returns when the record was last written, zero if never.
func (r *RedisStore) SavedAt(ctx context.Context) (time.Time, error) {
	ts, err := r.client.HGet(ctx, r.key(keySaveMeta), "savedAt").Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// GetBlacklist returns all blacklisted IPs
func (r *RedisStore) GetBlacklist(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.key(keyBlacklist)).Result()
}

// GetWhitelist returns all whitelisted IPs
func (r *RedisStore) GetWhitelist(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.key(keyWhitelist)).Result()
}

// AddToBlacklist adds an IP to the blacklist
func (r *RedisStore) AddToBlacklist(ctx context.Context, ip string) error {
	return r.client.SAdd(ctx, r.key(keyBlacklist), ip).Err()
}

// AddToWhitelist adds an IP to the whitelist
func (r *RedisStore) AddToWhitelist(ctx context.Context, ip string) error {
	return r.client.SAdd(ctx, r.key(keyWhitelist), ip).Err()
}

