package exclusion

import (
	"context"
	"time"

	"github.com/meruscrap/pimapos/internal/cache"
	"github.com/meruscrap/pimapos/internal/logger"
	"go.uber.org/zap"
)

// RedisStore is a Store backed by Redis TTL keys, so exclusion entries survive
// a process restart within their retention window.
type RedisStore struct {
	client *cache.RedisClient

	// namespace separates the handled set from the dismissed set and one
	// operator session from another.
	namespace string

	// ttl caps how long an entry can outlive its Add. Redis expires entries
	// natively, which is why Prune is a no-op here.
	ttl time.Duration
}

// NewRedisStore creates an exclusion set under the given namespace.
func NewRedisStore(client *cache.RedisClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (r *RedisStore) key(id string) string {
	return "pimapos:exclusion:" + r.namespace + ":" + id
}

func (r *RedisStore) Has(ctx context.Context, id string) bool {
	n, err := r.client.Exists(ctx, r.key(id))
	if err != nil {
		// A cache miss is the safe answer: the store-level filters still
		// apply, the exclusion set is only an optimization.
		logger.Log.Warn("Exclusion set lookup failed",
			zap.String("namespace", r.namespace), zap.Error(err))
		return false
	}
	return n > 0
}

func (r *RedisStore) Add(ctx context.Context, id string) error {
	return r.client.SetEx(ctx, r.key(id), "1", r.ttl)
}

func (r *RedisStore) Remove(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id))
}

// Prune is a no-op: Redis expires entries via TTL.
func (r *RedisStore) Prune(context.Context, time.Duration) int {
	return 0
}
