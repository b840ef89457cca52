package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store with one Redis hash per document and a set
// per collection holding the document ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(opts ...RedisOption) (*RedisStore, error) {
	cfg := &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 5,
		Prefix:       "panelsync",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, prefix: cfg.Prefix}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Client returns underlying redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	pipe := s.client.TxPipeline()
	if err := s.queue(ctx, pipe, collection, id, fields); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Batch(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, d := range docs {
		if err := s.queue(ctx, pipe, collection, d.ID, d.Fields); err != nil {
			return err
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) queue(ctx context.Context, pipe redis.Pipeliner, collection, id string, fields map[string]any) error {
	set, del, err := split(fields)
	if err != nil {
		return err
	}
	key := DocKey(s.prefix, collection, id)
	if len(set) > 0 {
		values := make([]any, 0, 2*len(set))
		for k, v := range set {
			values = append(values, k, v)
		}
		pipe.HSet(ctx, key, values...)
	}
	if len(del) > 0 {
		pipe.HDel(ctx, key, del...)
	}
	pipe.SAdd(ctx, IndexKey(s.prefix, collection), id)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Unlink(ctx, DocKey(s.prefix, collection, id))
	pipe.SRem(ctx, IndexKey(s.prefix, collection), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, DocKey(s.prefix, collection, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *RedisStore) List(ctx context.Context, collection string) (map[string]map[string]string, error) {
	ids, err := s.client.SMembers(ctx, IndexKey(s.prefix, collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[string]map[string]string{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, DocKey(s.prefix, collection, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make(map[string]map[string]string, len(ids))
	for i, id := range ids {
		m, err := cmds[i].Result()
		if err != nil || len(m) == 0 {
			continue // index entry without a document
		}
		out[id] = m
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
