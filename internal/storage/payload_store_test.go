package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client)
}

func TestPayloadStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewPayloadStore(newTestRedis(t))

	payload := &models.BattleTaskPayload{
		JobConfigID:  "nin-user-1",
		JobRunID:     "run-1",
		TaskID:       42,
		RawMatchID:   "VnNIaXN0b3J5RGV0YWls",
		RawGroupJSON: `{"historyDetails":{"nodes":[]}}`,
	}

	require.NoError(t, store.Save(ctx, payload.JobConfigID, "dedup-key-1", payload))

	loaded, err := store.Load(ctx, payload.JobConfigID, "dedup-key-1")
	require.NoError(t, err)
	require.Equal(t, payload, loaded)
}

func TestPayloadStoreMissing(t *testing.T) {
	ctx := context.Background()
	store := NewPayloadStore(newTestRedis(t))

	_, err := store.Load(ctx, "nin-user-1", "never-saved")
	require.Error(t, err)

	catErr := apperrors.Categorize(err)
	require.Equal(t, apperrors.CategoryNotFound, catErr.Category)
}

func TestPayloadStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewPayloadStore(newTestRedis(t))

	payload := &models.BattleTaskPayload{JobConfigID: "nin-user-1", RawMatchID: "id"}
	require.NoError(t, store.Save(ctx, "nin-user-1", "k", payload))
	require.NoError(t, store.Delete(ctx, "nin-user-1", "k"))

	_, err := store.Load(ctx, "nin-user-1", "k")
	require.Error(t, err)
}

func TestDedupIndex(t *testing.T) {
	ctx := context.Background()
	index := NewDedupIndex(newTestRedis(t))

	exists, err := index.Exists(ctx, "nin-user-1", "match-1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, index.Mark(ctx, "nin-user-1", "match-1"))

	exists, err = index.Exists(ctx, "nin-user-1", "match-1")
	require.NoError(t, err)
	require.True(t, exists)

	// markers are scoped per config
	exists, err = index.Exists(ctx, "nin-user-2", "match-1")
	require.NoError(t, err)
	require.False(t, exists)
}
