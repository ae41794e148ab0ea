package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb redis.Cmdable, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup remembers processed ids per service. It is a fast path only;
// correctness never depends on it.
type Dedup struct {
	Redis   redis.Cmdable
	Service string
}

func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.Redis, fmt.Sprintf(KeyDedup, d.Service, id))
}

func (d *Dedup) Mark(ctx context.Context, id string) error {
	return d.Redis.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Err()
}

// Lock is a best-effort SET NX lease.
type Lock struct {
	Redis redis.Cmdable
	TTL   time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Acquire returns a release func, or ok=false when someone else holds key.
func (l *Lock) Acquire(ctx context.Context, key string) (release func(), ok bool, err error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = TTLInvoiceLock
	}
	token := uuid.NewString()
	ok, err = l.Redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.Redis, []string{key}, token).Err()
	}, true, nil
}
