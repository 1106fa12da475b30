package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"DCAScanner/internal/model"
)

const (
	redisKeyPrefix = "dca:portfolio:"
	redisIndexKey  = "dca:portfolios"
)

// RedisStore keeps each portfolio as a JSON string plus a set of known ids.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Load(ctx context.Context, id string) (*model.Portfolio, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var p model.Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode portfolio %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisStore) Save(ctx context.Context, p *model.Portfolio) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKey(p.ID), data, 0)
	pipe.SAdd(ctx, redisIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, redisKey(id))
	pipe.SRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]model.Portfolio, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis members: %w", err)
	}
	sort.Strings(ids)

	out := make([]model.Portfolio, 0, len(ids))
	for _, id := range ids {
		p, err := s.Load(ctx, id)
		if errors.Is(err, ErrPortfolioNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Transactions = nil
		out = append(out, *p)
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
