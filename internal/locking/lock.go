// Package locking serializes lifecycle operations per organization name.
package locking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	redis "github.com/redis/go-redis/v9"
)

// Keyed grants exclusive access to a key for the duration of one lifecycle
// operation. Operations on different keys proceed concurrently.
type Keyed interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type local struct {
	km *kmutex.Kmutex
}

// NewLocal returns an in-process keyed lock. Sufficient for single-replica
// deployments; multi-replica deployments use the redis locker.
func NewLocal() Keyed {
	return &local{km: kmutex.New()}
}

func (l *local) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.km.Lock(key)
	return func() { l.km.Unlock(key) }, nil
}

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const redisRetryInterval = 50 * time.Millisecond

type redisLocker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

// NewRedis returns a keyed lock backed by redis SET NX. The TTL bounds how
// long a crashed holder can block other replicas.
func NewRedis(client *redis.Client, ttl time.Duration) Keyed {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    ttl,
	}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}

	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = l.script.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisRetryInterval):
		}
	}
}
