package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Itoktsnhc/stat.itok/internal/codec"
	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
	"github.com/Itoktsnhc/stat.itok/internal/models"
)

// payloadTTL bounds how long an unprocessed payload survives. Any task
// still queued after this is redispatched on a later cycle anyway.
const payloadTTL = 7 * 24 * time.Hour

// PayloadStore keeps full task payloads out of the queue: the queue
// carries references, the store carries the compressed raw documents.
type PayloadStore struct {
	redis *RedisStore
}

// NewPayloadStore creates a payload store on the shared Redis
// connection.
func NewPayloadStore(redis *RedisStore) *PayloadStore {
	return &PayloadStore{redis: redis}
}

func payloadKey(jobConfigID string, dedupKey string) string {
	return fmt.Sprintf("payload:%s:%s", jobConfigID, dedupKey)
}

// Save compresses and stores one task payload.
func (s *PayloadStore) Save(ctx context.Context, jobConfigID string, dedupKey string, payload *models.BattleTaskPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewStorageError("marshal payload", err)
	}
	compressed, err := codec.CompressString(string(raw))
	if err != nil {
		return apperrors.NewStorageError("compress payload", err)
	}

	if err := s.redis.Client().Set(ctx, payloadKey(jobConfigID, dedupKey), compressed, payloadTTL).Err(); err != nil {
		return apperrors.NewStorageError("save payload", err)
	}
	return nil
}

// Load fetches and decompresses one task payload. A missing payload is
// a distinct error: the worker treats it as permanently unprocessable.
func (s *PayloadStore) Load(ctx context.Context, jobConfigID string, dedupKey string) (*models.BattleTaskPayload, error) {
	compressed, err := s.redis.Client().Get(ctx, payloadKey(jobConfigID, dedupKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewPayloadMissingError(dedupKey)
		}
		return nil, apperrors.NewStorageError("load payload", err)
	}

	raw, err := codec.DecompressString(compressed)
	if err != nil {
		return nil, apperrors.NewStorageError("decompress payload", err)
	}

	var payload models.BattleTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, apperrors.NewStorageError("unmarshal payload", err)
	}
	return &payload, nil
}

// Delete removes one payload after its task completes.
func (s *PayloadStore) Delete(ctx context.Context, jobConfigID string, dedupKey string) error {
	if err := s.redis.Client().Del(ctx, payloadKey(jobConfigID, dedupKey)).Err(); err != nil {
		return apperrors.NewStorageError("delete payload", err)
	}
	return nil
}

// DedupIndex records which matches have already been uploaded per
// config. Advisory: a lost marker causes a duplicate upload attempt,
// which the target service rejects as a conflict, never data loss.
type DedupIndex struct {
	redis *RedisStore
}

// NewDedupIndex creates a dedup index on the shared Redis connection.
func NewDedupIndex(redis *RedisStore) *DedupIndex {
	return &DedupIndex{redis: redis}
}

func dedupKey(jobConfigID string, key string) string {
	return fmt.Sprintf("dedup:%s:%s", jobConfigID, key)
}

// Exists reports whether a match was already processed.
func (d *DedupIndex) Exists(ctx context.Context, jobConfigID string, key string) (bool, error) {
	count, err := d.redis.Client().Exists(ctx, dedupKey(jobConfigID, key)).Result()
	if err != nil {
		return false, apperrors.NewStorageError("dedup check", err)
	}
	return count > 0, nil
}

// Mark records a match as processed.
func (d *DedupIndex) Mark(ctx context.Context, jobConfigID string, key string) error {
	if err := d.redis.Client().Set(ctx, dedupKey(jobConfigID, key), "1", 0).Err(); err != nil {
		return apperrors.NewStorageError("dedup mark", err)
	}
	return nil
}
