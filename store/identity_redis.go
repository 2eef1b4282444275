package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisIdentitySet is an IdentitySet backed by a Redis set, one key per
// source. It lets deployments share delivery state across hosts without
// touching the orchestrator; membership is exact (a plain set, not a bloom
// filter) because a false positive would permanently suppress an article
// that was never sent.
type RedisIdentitySet struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	pending []string
	seen    map[string]bool
}

// NewRedisIdentitySet connects to addr and verifies connectivity. ttl of
// zero means the key never expires.
func NewRedisIdentitySet(addr, key string, ttl time.Duration) (*RedisIdentitySet, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisIdentitySet{
		client: client,
		key:    key,
		ttl:    ttl,
		seen:   make(map[string]bool),
	}, nil
}

// Close closes the underlying Redis client.
func (r *RedisIdentitySet) Close() error { return r.client.Close() }

func (r *RedisIdentitySet) Contains(id string) bool {
	if r.seen[id] {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		// Degrade toward "unseen": a transient Redis error should not
		// swallow an article, only risk one duplicate.
		log.Printf("Warning: redis SISMEMBER failed for %s: %v", r.key, err)
		return false
	}
	return ok
}

// Add claims the identity in memory; it reaches Redis on Commit.
func (r *RedisIdentitySet) Add(id string) {
	if id == "" || r.seen[id] {
		return
	}
	r.seen[id] = true
	r.pending = append(r.pending, id)
}

func (r *RedisIdentitySet) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return len(r.seen)
	}
	return int(n)
}

// Commit pushes the claimed identities with SADD and refreshes the key TTL.
func (r *RedisIdentitySet) Commit() error {
	if len(r.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	members := make([]interface{}, len(r.pending))
	for i, id := range r.pending {
		members[i] = id
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to commit identities to redis: %w", err)
	}
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to refresh identity key TTL: %w", err)
		}
	}
	r.pending = r.pending[:0]
	return nil
}
