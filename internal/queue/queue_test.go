package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Itoktsnhc/stat.itok/internal/storage"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(storage.NewRedisStoreWithClient(client), "test-tasks")
}

func TestEnqueueReceiveDelete(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, "first"))
	require.NoError(t, q.Enqueue(ctx, "second"))

	messages, err := q.Receive(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	require.Equal(t, "first", messages[0].Body)
	require.Equal(t, "second", messages[1].Body)
	for _, msg := range messages {
		require.Equal(t, 1, msg.Deliveries)
		require.NoError(t, q.Delete(ctx, msg))
	}

	messages, err = q.Receive(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, messages)

	pending, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
	require.Zero(t, inflight)
}

func TestReceiveRespectsMax(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, "body"))
	}

	messages, err := q.Receive(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	pending, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)
	require.EqualValues(t, 1, inflight)
}

func TestVisibilityLapseRedelivers(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, "retried"))

	first, err := q.Receive(ctx, 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, first[0].Deliveries)

	// undeleted and past its visibility deadline, so it comes back
	time.Sleep(30 * time.Millisecond)

	second, err := q.Receive(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, "retried", second[0].Body)
	require.Equal(t, 2, second[0].Deliveries)

	require.NoError(t, q.Delete(ctx, second[0]))

	third, err := q.Receive(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Empty(t, third)
}

func TestDeletedMessageStaysInvisible(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, "done"))

	messages, err := q.Receive(ctx, 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.NoError(t, q.Delete(ctx, messages[0]))

	time.Sleep(30 * time.Millisecond)

	messages, err = q.Receive(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestPoisonRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, "bad"))

	messages, err := q.Receive(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	require.NoError(t, q.Poison(ctx, messages[0]))

	// poisoned messages leave the live queue entirely
	pending, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
	require.Zero(t, inflight)

	msg, ok, err := q.PopPoison(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, messages[0].ID, msg.ID)
	require.Equal(t, "bad", msg.Body)

	_, ok, err = q.PopPoison(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
