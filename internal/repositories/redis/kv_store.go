package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hanko-field/storefront/internal/repositories"
)

// Client is the subset of the go-redis client used by KVStore.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Options configures a redis-backed store.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// KVStore persists storefront snapshots in redis string keys.
type KVStore struct {
	client Client
	prefix string
	ttl    time.Duration
}

// Open dials redis and verifies connectivity.
func Open(ctx context.Context, opts Options) (*KVStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis kv store: address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	store, err := NewKVStore(ctx, client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// NewKVStore wraps an existing client. The connection is checked with PING.
func NewKVStore(ctx context.Context, client Client, opts Options) (*KVStore, error) {
	if client == nil {
		return nil, errors.New("redis kv store: client must be non-nil")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, repositories.NewUnavailableError("redis.ping", err)
	}
	return &KVStore{
		client: client,
		prefix: strings.TrimSpace(opts.KeyPrefix),
		ttl:    opts.TTL,
	}, nil
}

func (s *KVStore) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements repositories.KeyValueStore.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.name(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, repositories.WrapError("redis.get", err)
	}
	return value, true, nil
}

// Set implements repositories.KeyValueStore.
func (s *KVStore) Set(ctx context.Context, key string, value string) error {
	if err := s.client.Set(ctx, s.name(key), value, s.ttl).Err(); err != nil {
		return repositories.WrapError("redis.set", err)
	}
	return nil
}

// Delete implements repositories.KeyValueStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.name(key)).Err(); err != nil {
		return repositories.WrapError("redis.delete", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *KVStore) Close() error {
	return s.client.Close()
}

var _ repositories.KeyValueStore = (*KVStore)(nil)
