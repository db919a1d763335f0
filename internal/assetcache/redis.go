package assetcache

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per cache name, field = asset URL, value = JSON entry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &RedisStore{client: c, prefix: "assetcache:"}, nil
}

// Client exposes the connection for health checks.
func (s *RedisStore) Client() *redis.Client { return s.client }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(name string) string { return s.prefix + name }

// Replace drops the old hash and writes the new one in a single MULTI/EXEC.
func (s *RedisStore) Replace(ctx context.Context, name string, entries []Entry) error {
	fields := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.URL, err)
		}
		fields[e.URL] = b
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	if len(fields) > 0 {
		pipe.HSet(ctx, s.key(name), fields)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, name, url string) (Entry, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(name), url).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode %s: %w", url, err)
	}
	return e, true, nil
}

func (s *RedisStore) Len(ctx context.Context, name string) (int, error) {
	n, err := s.client.HLen(ctx, s.key(name)).Result()
	return int(n), err
}
