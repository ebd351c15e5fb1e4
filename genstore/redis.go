package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of redis.UniversalClient used by Redis.
type Client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Redis shares generations across processes and survives restarts.
type Redis struct {
	rdb Client
	ns  string
	ttl time.Duration
}

// NewRedis stores gens under gen:<namespace>:<id>. With ttl > 0 every bump
// refreshes the key's expiry; keep it above the cache TTL.
func NewRedis(client Client, namespace string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("genstore: redis client is required")
	}
	return &Redis{rdb: client, ns: namespace, ttl: ttl}, nil
}

func (s *Redis) key(id int64) string { return "gen:" + s.ns + ":" + strconv.FormatInt(id, 10) }

// SnapshotMany reads all gens with one MGET. Missing keys map to 0.
func (s *Redis) SnapshotMany(ctx context.Context, ids []int64) (map[int64]uint64, error) {
	out := make(map[int64]uint64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != len(ids) {
		return nil, fmt.Errorf("genstore: MGET returned %d values for %d keys", len(vals), len(ids))
	}

	for i, v := range vals {
		var raw string
		switch vv := v.(type) {
		case nil:
			out[ids[i]] = 0
			continue
		case string:
			raw = vv
		case []byte:
			raw = string(vv)
		default:
			raw = fmt.Sprint(vv)
		}
		u, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("genstore: parse gen for %d: %w", ids[i], err)
		}
		out[ids[i]] = u
	}
	return out, nil
}

// Bump increments the generation with INCR. When ttl > 0 the key's expiry is
// refreshed afterwards; an expiry failure is returned with the new gen.
func (s *Redis) Bump(ctx context.Context, id int64) (uint64, error) {
	k := s.key(id)
	v, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, k, s.ttl).Err(); err != nil {
			return uint64(v), fmt.Errorf("genstore: expire %s: %w", k, err)
		}
	}
	return uint64(v), nil
}

// Cleanup is not applicable; Redis handles expiry when ttl is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close is a no-op; the caller owns the client.
func (s *Redis) Close(context.Context) error { return nil }
