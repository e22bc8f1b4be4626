package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/gameproof/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const (
	fieldUpdatedAt = "updated_at"
	scanBatch      = 256
)

// RedisStore keeps one hash per identity. Blob fields hold zstd payloads.
// The caller owns the client and closes it.
type RedisStore struct {
	client redis.UniversalClient
	codec  *codec
	opts   storeOptions
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...StoreOption) (*RedisStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client, codec: c, opts: o}, nil
}

func (s *RedisStore) key(id model.Identity) string {
	return fmt.Sprintf("%s:submission:%d", s.opts.keyPrefix, uint64(id))
}

func (s *RedisStore) Put(ctx context.Context, id model.Identity, kind model.BlobKind, blob []byte) error {
	defer observe(BackendRedis, "put", time.Now())
	if _, err := model.ParseBlobKind(string(kind)); err != nil {
		return err
	}
	key := s.key(id)
	payload := s.codec.encode(blob)
	now := s.opts.now().UnixNano()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, string(kind), payload, fieldUpdatedAt, now)
		if s.opts.ttl > 0 {
			pipe.Expire(ctx, key, s.opts.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis put %s: %w", ErrStorage, key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id model.Identity) (model.Submission, error) {
	defer observe(BackendRedis, "get", time.Now())
	key := s.key(id)
	vals, err := s.client.HMGet(ctx, key, string(model.BlobVideo), string(model.BlobInput), fieldUpdatedAt).Result()
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: redis get %s: %w", ErrStorage, key, err)
	}
	if len(vals) != 3 || vals[0] == nil || vals[1] == nil {
		return model.Submission{}, ErrIncompleteSubmission
	}
	sub := model.Submission{Identity: id}
	if sub.Video, err = s.decodeField(vals[0]); err != nil {
		return model.Submission{}, err
	}
	if sub.Input, err = s.decodeField(vals[1]); err != nil {
		return model.Submission{}, err
	}
	if ts, ok := vals[2].(string); ok {
		if ns, perr := strconv.ParseInt(ts, 10, 64); perr == nil {
			sub.UpdatedAt = time.Unix(0, ns)
		}
	}
	return sub, nil
}

func (s *RedisStore) decodeField(v interface{}) ([]byte, error) {
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected redis value %T", ErrStorage, v)
	}
	return s.codec.decode([]byte(str))
}

func (s *RedisStore) Clear(ctx context.Context, id model.Identity) error {
	defer observe(BackendRedis, "clear", time.Now())
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: redis clear: %w", ErrStorage, err)
	}
	return nil
}

// Sweep complements key expiry for submissions written before a TTL was
// configured. Each delete is guarded by WATCH so a concurrent upload wins.
func (s *RedisStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	defer observe(BackendRedis, "sweep", time.Now())
	removed := 0
	err := s.scan(ctx, func(key string) error {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			ts, err := tx.HGet(ctx, key, fieldUpdatedAt).Int64()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			if !time.Unix(0, ts).Before(before) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err == nil {
				removed++
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			return nil
		}
		return err
	})
	if err != nil {
		return removed, fmt.Errorf("%w: redis sweep: %w", ErrStorage, err)
	}
	return removed, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.scan(ctx, func(string) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: redis count: %w", ErrStorage, err)
	}
	return n, nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	match := s.opts.keyPrefix + ":submission:*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	s.codec.close()
	return nil
}
