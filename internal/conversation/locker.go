package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a user's lock could not be taken in time.
var ErrLockTimeout = errors.New("conversation: timed out waiting for user lock")

// Locker serializes work per user. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, userID string) (func(), error)
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Idle keys are dropped.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, userID string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.drop(userID, l)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.drop(userID, l)
		})
	}, nil
}

func (k *KeyedMutex) drop(userID string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, userID)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance using the same Redis.
// The lock expires after ttl so a crashed holder cannot block a user forever.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &RedisLocker{redis: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func lockKey(userID string) string {
	return fmt.Sprintf("conversation_lock:%s", userID)
}

func (l *RedisLocker) Lock(ctx context.Context, userID string) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("conversation: acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.redis, []string{key}, token).Err()
		})
	}, nil
}

var (
	_ Locker = (*KeyedMutex)(nil)
	_ Locker = (*RedisLocker)(nil)
)
