package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisSessionStore_Lifecycle(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	sd := SessionDescriptor{ID: 7, Name: "Ana", Email: "ana@example.com", IsLoggedIn: true, Token: "0123456789abcdef0123456789abcdef"}
	require.NoError(t, store.Save(ctx, sd, time.Hour))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], sessionKeyPrefix))
	assert.NotContains(t, keys[0], sd.Token, "raw token must not appear in the key")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	got, err := store.Lookup(ctx, sd.Token)
	require.NoError(t, err)
	assert.Equal(t, sd, *got)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Delete(ctx, sd.Token))
	_, err = store.Lookup(ctx, sd.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, SessionDescriptor{ID: 1, Token: "tok"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Lookup(ctx, "tok")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_EmptyToken(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, SessionDescriptor{ID: 1}, time.Minute))
	_, err := store.Lookup(ctx, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, store.Delete(ctx, ""))
}
