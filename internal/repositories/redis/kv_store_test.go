package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/storefront/internal/repositories"
)

type stubClient struct {
	values  map[string]string
	ttls    map[string]time.Duration
	pingErr error
	setErr  error
	closed  bool
}

func newStubClient() *stubClient {
	return &stubClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *stubClient) Get(_ context.Context, key string) *goredis.StringCmd {
	value, ok := c.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(value, nil)
}

func (c *stubClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	if c.setErr != nil {
		return goredis.NewStatusResult("", c.setErr)
	}
	c.values[key] = value.(string)
	c.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (c *stubClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := c.values[key]; ok {
			delete(c.values, key)
			removed++
		}
	}
	return goredis.NewIntResult(removed, nil)
}

func (c *stubClient) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", c.pingErr)
}

func (c *stubClient) Close() error {
	c.closed = true
	return nil
}

func TestKVStorePrefixesKeysAndAppliesTTL(t *testing.T) {
	ctx := context.Background()
	client := newStubClient()
	store, err := NewKVStore(ctx, client, Options{KeyPrefix: "storefront", TTL: time.Hour})
	require.NoError(t, err)

	_, found, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "cart", "{}"))
	assert.Equal(t, "{}", client.values["storefront:cart"])
	assert.Equal(t, time.Hour, client.ttls["storefront:cart"])

	value, found, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{}", value)

	require.NoError(t, store.Delete(ctx, "cart"))
	assert.NotContains(t, client.values, "storefront:cart")

	require.NoError(t, store.Close())
	assert.True(t, client.closed)
}

func TestKVStoreClassifiesFailures(t *testing.T) {
	ctx := context.Background()

	client := newStubClient()
	client.pingErr = errors.New("connection refused")
	_, err := NewKVStore(ctx, client, Options{})
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsUnavailable())

	client = newStubClient()
	store, err := NewKVStore(ctx, client, Options{})
	require.NoError(t, err)
	client.setErr = errors.New("READONLY")
	err = store.Set(ctx, "cart", "{}")
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsUnavailable())
}

func TestOpenRequiresAddress(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}
