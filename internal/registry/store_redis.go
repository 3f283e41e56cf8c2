package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "call:"

// RedisStore keeps records as JSON values under call:<id>. Records are
// cache-only, so no TTL is applied; the registry stays a mirror of what the
// voice provider knows.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) key(callID string) string { return redisKeyPrefix + callID }

func (s *RedisStore) Put(ctx context.Context, rec CallRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("registry: encode record: %w", err)
	}
	return s.rdb.Set(ctx, s.key(rec.CallID), data, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, callID string) (CallRecord, bool, error) {
	data, err := s.rdb.Get(ctx, s.key(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, err
	}
	var rec CallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return CallRecord{}, false, fmt.Errorf("registry: decode record: %w", err)
	}
	return rec, true, nil
}

// Update is an optimistic WATCH-based read-modify-write. Contention on a
// single call id is rare (one poll or webhook at a time), so a small retry
// budget suffices.
func (s *RedisStore) Update(ctx context.Context, callID string, fn func(*CallRecord) error) (CallRecord, error) {
	key := s.key(callID)
	var out CallRecord

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec CallRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("registry: decode record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("registry: encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = rec
		return nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return CallRecord{}, err
		}
		return out, nil
	}
	return CallRecord{}, fmt.Errorf("registry: update contention on %s", callID)
}

func (s *RedisStore) List(ctx context.Context) (map[string]CallRecord, error) {
	out := make(map[string]CallRecord)
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec CallRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("registry: decode record %s: %w", key, err)
		}
		out[rec.CallID] = rec
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
