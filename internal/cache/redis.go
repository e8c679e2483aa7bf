package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "elements:embeddings:"

// Redis keeps entries in a shared Redis instance so multiple replicas reuse
// each other's embeddings. Entries expire after TTL (zero means no expiry).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *log.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string, chunkSize int) (*Entry, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		r.logger.Printf("[CACHE] dropping corrupt entry %s: %v", key, err)
		_ = r.client.Del(ctx, redisKeyPrefix+key).Err()
		return nil, nil
	}
	if e.ChunkSize != chunkSize || len(e.Chunks) != len(e.Embeddings) {
		return nil, nil
	}
	return &e, nil
}

func (r *Redis) Put(ctx context.Context, key string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}
