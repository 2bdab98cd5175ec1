package storage

import (
	"context"
	"errors"
	"testing"

	"moodle-assistant/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisBackend) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	backend := NewRedisBackend(config.RedisConfig{Address: mr.Addr(), KeyPrefix: "test:"})
	t.Cleanup(func() { backend.Close() })
	return mr, backend
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, backend := setupRedis(t)

	require.NoError(t, backend.Ping(ctx))
	require.NoError(t, backend.Set(ctx, "sessionId", `"abc123"`))

	raw, err := mr.Get("test:sessionId")
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, raw)

	v, err := backend.Get(ctx, "sessionId")
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, v)

	require.NoError(t, backend.Delete(ctx, "sessionId"))
	_, err = backend.Get(ctx, "sessionId")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBackend_ThroughStore(t *testing.T) {
	ctx := context.Background()
	_, backend := setupRedis(t)
	store := NewStore(backend, nil)

	require.True(t, store.Set(ctx, "sessionId", "abc123").OK())
	got, res := store.GetString(ctx, "sessionId")
	require.True(t, res.OK())
	assert.Equal(t, "abc123", got)
}

func TestRedisBackend_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, backend := setupRedis(t)
	mr.Close()

	store := NewStore(backend, nil)
	assert.Equal(t, StatusUnavailable, store.Set(ctx, "sessionId", "abc123").Status)

	got, res := store.GetString(ctx, "sessionId")
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Empty(t, got)
}

func TestRedisBackend_CommandErrors(t *testing.T) {
	ctx := context.Background()
	client, redisMock := redismock.NewClientMock()
	backend := NewRedisBackendFromClient(client, "p:")

	redisMock.ExpectSet("p:user", `{"username":"alice"}`, 0).SetErr(errors.New("OOM command not allowed"))
	redisMock.ExpectGet("p:user").RedisNil()
	redisMock.ExpectDel("p:user").SetErr(errors.New("READONLY"))

	err := backend.Set(ctx, "user", `{"username":"alice"}`)
	assert.ErrorContains(t, err, "OOM")

	_, err = backend.Get(ctx, "user")
	assert.ErrorIs(t, err, ErrNotFound)

	err = backend.Delete(ctx, "user")
	assert.ErrorContains(t, err, "READONLY")

	assert.NoError(t, redisMock.ExpectationsWereMet())
}
