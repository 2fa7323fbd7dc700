package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each runner's records as a JSON list, newest at the head,
// mirroring the browser key-value storage the web client used.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, record RunRecord) error {
	if s.client == nil {
		return ErrUnavailable
	}
	if err := validate(record); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("records: encode: %w", err)
	}
	if err := s.client.LPush(ctx, runnerKey(record.RunnerID), payload).Err(); err != nil {
		return fmt.Errorf("records: lpush: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, runnerID string, limit int) ([]RunRecord, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, runnerKey(runnerID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	list := make([]RunRecord, 0, len(raw))
	for _, item := range raw {
		var r RunRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("records: decode: %w", err)
		}
		list = append(list, r)
	}
	return list, nil
}

func runnerKey(runnerID string) string {
	return "runs:" + runnerID + ":records"
}
