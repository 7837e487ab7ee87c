// Package queue implements an at-least-once task queue on Redis. A
// received message stays invisible for a visibility timeout; deleting
// it acknowledges completion, letting the timeout lapse redelivers it.
// Messages over the delivery limit move to a poison list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/storage"
)

// Message is one delivered queue entry.
type Message struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	Deliveries int    `json:"deliveries"`
}

// Queue is a named at-least-once queue.
type Queue struct {
	redis *storage.RedisStore
	name  string
}

// New creates a queue handle; queues are created lazily on first use.
func New(redis *storage.RedisStore, name string) *Queue {
	return &Queue{redis: redis, name: name}
}

func (q *Queue) pendingKey() string    { return fmt.Sprintf("queue:%s", q.name) }
func (q *Queue) processingKey() string { return fmt.Sprintf("queue:%s:processing", q.name) }
func (q *Queue) bodiesKey() string     { return fmt.Sprintf("queue:%s:bodies", q.name) }
func (q *Queue) deliveriesKey() string { return fmt.Sprintf("queue:%s:deliveries", q.name) }
func (q *Queue) poisonKey() string     { return fmt.Sprintf("queue:%s:poison", q.name) }

// Enqueue adds one message.
func (q *Queue) Enqueue(ctx context.Context, body string) error {
	id := uuid.NewString()
	client := q.redis.Client()

	pipe := client.TxPipeline()
	pipe.HSet(ctx, q.bodiesKey(), id, body)
	pipe.LPush(ctx, q.pendingKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewQueueError("enqueue", err)
	}
	return nil
}

// Receive returns up to max messages, making each invisible for the
// visibility timeout. Messages whose previous timeout lapsed are
// redelivered first, with their delivery count incremented.
func (q *Queue) Receive(ctx context.Context, max int, visibility time.Duration) ([]Message, error) {
	client := q.redis.Client()
	now := time.Now()
	deadline := float64(now.Add(visibility).UnixMilli())

	var messages []Message

	expired, err := client.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(max),
	}).Result()
	if err != nil {
		return nil, apperrors.NewQueueError("reclaim expired", err)
	}
	for _, id := range expired {
		msg, err := q.claim(ctx, id, deadline)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	for len(messages) < max {
		id, err := client.RPop(ctx, q.pendingKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return nil, apperrors.NewQueueError("receive", err)
		}
		msg, err := q.claim(ctx, id, deadline)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	return messages, nil
}

// claim marks one message invisible and materializes it. A message
// whose body vanished (already deleted by a racing consumer) yields
// nil.
func (q *Queue) claim(ctx context.Context, id string, deadline float64) (*Message, error) {
	client := q.redis.Client()

	body, err := client.HGet(ctx, q.bodiesKey(), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			client.ZRem(ctx, q.processingKey(), id)
			return nil, nil
		}
		return nil, apperrors.NewQueueError("claim", err)
	}

	pipe := client.TxPipeline()
	pipe.ZAdd(ctx, q.processingKey(), redis.Z{Score: deadline, Member: id})
	deliveries := pipe.HIncrBy(ctx, q.deliveriesKey(), id, 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.NewQueueError("claim", err)
	}

	return &Message{
		ID:         id,
		Body:       body,
		Deliveries: int(deliveries.Val()),
	}, nil
}

// Delete acknowledges one message; it will not be redelivered.
func (q *Queue) Delete(ctx context.Context, msg Message) error {
	pipe := q.redis.Client().TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), msg.ID)
	pipe.HDel(ctx, q.bodiesKey(), msg.ID)
	pipe.HDel(ctx, q.deliveriesKey(), msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewQueueError("delete", err)
	}
	return nil
}

// Poison moves one message to the poison list.
func (q *Queue) Poison(ctx context.Context, msg Message) error {
	entry, err := json.Marshal(msg)
	if err != nil {
		return apperrors.NewQueueError("poison", err)
	}

	pipe := q.redis.Client().TxPipeline()
	pipe.LPush(ctx, q.poisonKey(), string(entry))
	pipe.ZRem(ctx, q.processingKey(), msg.ID)
	pipe.HDel(ctx, q.bodiesKey(), msg.ID)
	pipe.HDel(ctx, q.deliveriesKey(), msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewQueueError("poison", err)
	}
	return nil
}

// PopPoison removes and returns the oldest poisoned message; ok is
// false when the poison list is empty.
func (q *Queue) PopPoison(ctx context.Context) (Message, bool, error) {
	raw, err := q.redis.Client().RPop(ctx, q.poisonKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, false, nil
		}
		return Message{}, false, apperrors.NewQueueError("pop poison", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return Message{}, false, apperrors.NewQueueError("pop poison", err)
	}
	return msg, true, nil
}

// Depth reports pending and in-flight message counts.
func (q *Queue) Depth(ctx context.Context) (pending int64, inflight int64, err error) {
	client := q.redis.Client()
	pending, err = client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, 0, apperrors.NewQueueError("depth", err)
	}
	inflight, err = client.ZCard(ctx, q.processingKey()).Result()
	if err != nil {
		return 0, 0, apperrors.NewQueueError("depth", err)
	}
	return pending, inflight, nil
}
