package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"scentry/internal/constants"
)

// RedisStore persists outbox records as JSON values under a common prefix.
// Values carry no TTL; the sweeper owns eviction so age and attempt limits
// stay in one place.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox record %s: %w", rec.Key(), err)
	}
	if err := s.client.Set(ctx, constants.CacheKeyPrefixOutbox+rec.Key(), body, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for outbox record %s: %w", rec.Key(), err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	var records []Record

	iter := s.client.Scan(ctx, 0, constants.CacheKeyPrefixOutbox+"*", 0).Iterator()
	for iter.Next(ctx) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			// Deleted between scan and get; another sweep got there first.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get failed for %s: %w", iter.Val(), err)
		}

		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			// An unreadable record can never be delivered; drop it.
			s.client.Del(ctx, iter.Val())
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	return records, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, constants.CacheKeyPrefixOutbox+key).Err(); err != nil {
		return fmt.Errorf("redis del failed for outbox record %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Size(ctx context.Context) (int, error) {
	iter := s.client.Scan(ctx, 0, constants.CacheKeyPrefixOutbox+"*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return count, nil
}
