package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/devon-ng/gatewaycore/internal/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, "test")
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cred:openai", `{"apiKey":"sk-abc"}`))

	val, err := s.Get(ctx, "cred:openai")
	require.NoError(t, err)
	require.Equal(t, `{"apiKey":"sk-abc"}`, val)
}

func TestStore_GetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "cred:missing")
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStore_ExistsAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "cred:gemini", "x"))

	ok, err := s.Exists(ctx, "cred:gemini")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(ctx, "cred:gemini"))

	ok, err = s.Exists(ctx, "cred:gemini")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_DeleteMissingIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Delete(context.Background(), "cred:never-existed"))
}
