package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles the short-link cache and recently-scraped source marks.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func cacheKey(originalURL string) string {
	sum := md5.Sum([]byte(originalURL))
	return "short:" + hex.EncodeToString(sum[:])
}

// GetShortURL looks up a cached short link by the original URL's content
// hash. A hit bumps the usage counter.
func (s *RedisStore) GetShortURL(ctx context.Context, originalURL string) (string, bool, error) {
	key := cacheKey(originalURL)
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	s.client.Incr(ctx, key+":uses")
	return val, true, nil
}

// SetShortURL caches a shortened link.
func (s *RedisStore) SetShortURL(ctx context.Context, originalURL, shortURL string, ttl time.Duration) error {
	return s.client.Set(ctx, cacheKey(originalURL), shortURL, ttl).Err()
}

// MarkSourceScraped records that a source URL was recently ingested so
// operators can spot redundant runs.
func (s *RedisStore) MarkSourceScraped(ctx context.Context, sourceURL string, ttl time.Duration) error {
	key := fmt.Sprintf("scraped:%s", sourceURL)
	return s.client.Set(ctx, key, "1", ttl).Err()
}

// IsSourceRecentlyScraped checks whether a source URL was ingested within
// the marking TTL.
func (s *RedisStore) IsSourceRecentlyScraped(ctx context.Context, sourceURL string) (bool, error) {
	key := fmt.Sprintf("scraped:%s", sourceURL)
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
