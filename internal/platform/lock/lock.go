// Package lock serializes work on a single task across requests and processes.
package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dark_api/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskLocker hands out exclusive locks by key. The returned unlock func must be called exactly once.
type TaskLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Compare-and-delete so we never release a lock someone else acquired after ours expired.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

type RedisLocker struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, retries int, retryDelay time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:        rdb,
		prefix:     "task_lock:",
		ttl:        ttl,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	lockValue := uuid.NewString()

	for attempt := 0; ; attempt++ {
		ok, err := l.rdb.SetNX(ctx, lockKey, lockValue, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		if attempt >= l.retries {
			return nil, fmt.Errorf("lock %s busy after %d attempts: %w", lockKey, attempt+1, common.ErrLockFailed)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", lockKey, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	return func() {
		// The request context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		deleted, err := releaseScript.Run(releaseCtx, l.rdb, []string{lockKey}, lockValue).Int64()
		if err != nil {
			log.Printf("ERROR: Failed to release lock %s: %v", lockKey, err)
		} else if deleted == 0 {
			log.Printf("WARN: Lock %s expired before release", lockKey)
		}
	}, nil
}

// LocalLocker is an in-process TaskLocker for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
