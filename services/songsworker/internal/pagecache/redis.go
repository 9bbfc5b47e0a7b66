package pagecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "aoq:anidb:page:"

// RedisStore keeps zlib-compressed pages in Redis without expiry.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &RedisStore{Client: redis.NewClient(opt)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	blob, err := s.Client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("page cache get %s: %w", key, err)
	}
	page, err := decompress(blob)
	if err != nil {
		return nil, false, err
	}
	return page, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, page []byte) error {
	blob, err := compress(page)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, redisKeyPrefix+key, blob, 0).Err(); err != nil {
		return fmt.Errorf("page cache put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
