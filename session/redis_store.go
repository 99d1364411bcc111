package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/room4-2/callintake/callflow"
)

// redisStore keeps each session as a JSON string under <prefix>session:<id>
// and indexes live ids in a sorted set scored by last update (unix ms).
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

func newRedisStore(client *redis.Client, ttl time.Duration, prefix string, now func() time.Time) *redisStore {
	return &redisStore{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		now:    now,
	}
}

func (s *redisStore) key(id string) string {
	return s.prefix + "session:" + id
}

func (s *redisStore) activeKey() string {
	return s.prefix + "active_sessions"
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (s *redisStore) Create(ctx context.Context, sess *callflow.CallSession) error {
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Version = 1

	val, err := sonic.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(sess.ID), val, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyExists
	}
	return s.client.ZAdd(ctx, s.activeKey(), redis.Z{Score: score(now), Member: sess.ID}).Err()
}

func (s *redisStore) Get(ctx context.Context, id string) (callflow.CallSession, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return callflow.CallSession{}, ErrNotFound
	}
	if err != nil {
		return callflow.CallSession{}, err
	}

	var sess callflow.CallSession
	if err := sonic.Unmarshal(val, &sess); err != nil {
		return callflow.CallSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}

	// Refresh TTL on read.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return sess, nil
}

func (s *redisStore) Update(ctx context.Context, sess *callflow.CallSession) error {
	key := s.key(sess.ID)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored callflow.CallSession
		if err := sonic.Unmarshal(val, &stored); err != nil {
			return fmt.Errorf("decode session %s: %w", sess.ID, err)
		}
		if stored.Version != sess.Version {
			return ErrVersionConflict
		}

		next := sess.Clone()
		next.Version++
		next.CreatedAt = stored.CreatedAt
		next.UpdatedAt = s.now()

		newVal, err := sonic.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			pipe.ZAdd(ctx, s.activeKey(), redis.Z{Score: score(next.UpdatedAt), Member: sess.ID})
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		if err != nil {
			return err
		}

		sess.Version = next.Version
		sess.CreatedAt = next.CreatedAt
		sess.UpdatedAt = next.UpdatedAt
		return nil
	}, key)
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.activeKey(), id)
		return nil
	})
	return err
}

func (s *redisStore) Expire(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.activeKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.key(id))
			pipe.ZRem(ctx, s.activeKey(), id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	// Members whose keys already hit their TTL are dropped before counting.
	stale := strconv.FormatInt(s.now().Add(-s.ttl).UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.activeKey(), "-inf", "("+stale).Err(); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, s.activeKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
