package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lease guarantees a job runs on one instance at a time.
type Lease interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops the lease only while owner still holds it.
	Release(ctx context.Context, key, owner string) (bool, error)
}

const leaseKeyPrefix = "ispbilling:scheduler:lease:"

func leaseKey(job JobName) string {
	return leaseKeyPrefix + string(job)
}

// NewLease picks the Redis lease when a client is configured and the
// process-local one otherwise.
func NewLease(cfg config.Config, client *redis.Client, log *zap.Logger) Lease {
	if cfg.Redis.Enabled && client != nil {
		return NewRedisLease(client)
	}
	log.Named("scheduler").Info("redis disabled, using process-local job lease")
	return NewLocalLease()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLease struct {
	client *redis.Client
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func (l *RedisLease) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, owner, ttl).Result()
}

func (l *RedisLease) Release(ctx context.Context, key, owner string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type localEntry struct {
	owner   string
	expires time.Time
}

type LocalLease struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]localEntry
}

func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now, entries: make(map[string]localEntry)}
}

func (l *LocalLease) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.entries[key]; ok && now.Before(cur.expires) {
		return false, nil
	}
	l.entries[key] = localEntry{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (l *LocalLease) Release(_ context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.entries[key]
	if !ok || cur.owner != owner {
		return false, nil
	}
	delete(l.entries, key)
	return true, nil
}
