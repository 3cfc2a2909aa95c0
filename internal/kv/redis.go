package kv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"filescan-service/internal/config"
)

// RedisStore keeps each collection in a hash (id → value) plus a sorted set
// scored by insertion sequence for ordered enumeration.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisStore{client: rdb, prefix: cfg.Store.KeyPrefix}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) valuesKey(collection string) string {
	return s.prefix + ":" + collection
}

func (s *RedisStore) orderKey(collection string) string {
	return s.prefix + ":" + collection + ":order"
}

func (s *RedisStore) seqKey(collection string) string {
	return s.prefix + ":" + collection + ":seq"
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	value, err := s.client.HGet(ctx, s.valuesKey(collection), id).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, id string, value []byte) error {
	added, err := s.client.HSet(ctx, s.valuesKey(collection), id, value).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return nil // overwrite of an existing id keeps its position
	}

	seq, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, s.orderKey(collection), &redis.Z{
		Score:  float64(seq),
		Member: id,
	}).Err()
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) (bool, error) {
	removed, err := s.client.HDel(ctx, s.valuesKey(collection), id).Result()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}
	if err := s.client.ZRem(ctx, s.orderKey(collection), id).Err(); err != nil {
		return true, err
	}
	return true, nil
}

func (s *RedisStore) Keys(ctx context.Context, collection string, afterSeq int64, limit int) ([]Entry, error) {
	results, err := s.client.ZRangeByScoreWithScores(ctx, s.orderKey(collection), &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(afterSeq, 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Seq: int64(z.Score), ID: id})
	}
	return entries, nil
}

func (s *RedisStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.HLen(ctx, s.valuesKey(collection)).Result()
}
