package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const ackTTL = 30 * 24 * time.Hour

// RedisStore implements Store over a Redis list per channel. Newest records
// sit at the head; LTRIM keeps each channel bounded.
type RedisStore struct {
	client *redis.Client
	maxLen int
}

// NewRedisStore creates a store trimming each channel to maxLen records.
func NewRedisStore(client *redis.Client, maxLen int) *RedisStore {
	return &RedisStore{
		client: client,
		maxLen: maxLen,
	}
}

func channelKey(channel string) string {
	if channel == "" {
		channel = "_global"
	}
	return fmt.Sprintf("history:%s", channel)
}

func ackKey(recordID string) string {
	return fmt.Sprintf("ack:%s", recordID)
}

// Append pushes the record onto the channel's list and trims it.
func (s *RedisStore) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	key := channelKey(rec.Channel)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.maxLen-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// Recent reads up to limit records and reverses them back to original order.
func (s *RedisStore) Recent(ctx context.Context, channel string, limit int) ([]Record, error) {
	if limit <= 0 || limit > s.maxLen {
		limit = s.maxLen
	}

	raw, err := s.client.LRange(ctx, channelKey(channel), 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	out := make([]Record, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rec Record
		if err := json.Unmarshal([]byte(raw[i]), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Acknowledge adds the actor to the record's ack set.
func (s *RedisStore) Acknowledge(ctx context.Context, recordID, actor string) error {
	key := ackKey(recordID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, actor)
	pipe.Expire(ctx, key, ackTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record ack: %w", err)
	}
	return nil
}
