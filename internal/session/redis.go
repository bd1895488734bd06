package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ussd:session:"

// RedisStore keeps each session as a JSON value with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(id string) string { return keyPrefix + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	ok, err := r.rdb.SetNX(ctx, key(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", s.ID, err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", s.ID, err)
	}

	ok, err := r.rdb.SetXX(ctx, key(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}
