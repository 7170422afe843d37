package summarycache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]string
	getErr error
	setErr error
	ttl    time.Duration
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = value.(string)
	f.ttl = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, time.Hour)
	require.Error(t, err)
	_, err = New(&fakeRedis{}, 0)
	require.Error(t, err)
}

func TestCache_RoundTrip(t *testing.T) {
	rdb := &fakeRedis{values: map[string]string{}}
	c, err := New(rdb, 6*time.Hour)
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), "long record")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Put(context.Background(), "long record", "summary"))
	require.Equal(t, 6*time.Hour, rdb.ttl)

	got, ok, err := c.Get(context.Background(), "long record")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "summary", got)

	_, ok, err = c.Get(context.Background(), "another record")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheKey_IsStableDigest(t *testing.T) {
	k := cacheKey("abc")
	require.True(t, strings.HasPrefix(k, keyPrefix))
	require.Equal(t, k, cacheKey("abc"))
	require.NotEqual(t, k, cacheKey("abd"))
	require.Len(t, strings.TrimPrefix(k, keyPrefix), 64)
}

func TestCache_Errors(t *testing.T) {
	c, err := New(&fakeRedis{getErr: errors.New("conn refused"), setErr: errors.New("readonly")}, time.Hour)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "doc")
	require.ErrorContains(t, err, "conn refused")
	require.ErrorContains(t, c.Put(context.Background(), "doc", "s"), "readonly")
}
