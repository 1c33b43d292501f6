// Package locks serializes work on a single contact or deal across requests
// and, when Redis is configured, across instances.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/crm-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

const (
	defaultTTL          = 10 * time.Second
	defaultWaitTimeout  = 2 * time.Second
	defaultPollInterval = 25 * time.Millisecond
)

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

// Locker hands out exclusive ownership of a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Key builds the lock key for one entity.
func Key(kind, id string) string {
	return kind + ":" + id
}

func errBusy(key string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "resource is busy, retry").
		WithDetails(map[string]any{"lock": key})
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(kind, id string) string
}

// RedisLocker implements Locker using Redis SETNX with an owner token and TTL.
type RedisLocker struct {
	client       redisStore
	ttl          time.Duration
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client redisStore, cfg config.LocksConfig) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	l := &RedisLocker{
		client:       client,
		ttl:          cfg.TTL,
		waitTimeout:  cfg.WaitTimeout,
		pollInterval: cfg.PollInterval,
	}
	if l.ttl <= 0 {
		l.ttl = defaultTTL
	}
	if l.waitTimeout <= 0 {
		l.waitTimeout = defaultWaitTimeout
	}
	if l.pollInterval <= 0 {
		l.pollInterval = defaultPollInterval
	}
	return l, nil
}

// Acquire polls SETNX until the key is owned or the wait budget runs out.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	redisKey := l.client.LockKey("entity", key)
	owner := uuid.NewString()
	deadline := time.Now().Add(l.waitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("setnx: %w", err), "acquire lock")
		}
		if ok {
			return l.release(redisKey, owner), nil
		}
		if time.Now().After(deadline) {
			return nil, errBusy(key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// release frees the lock only if the owner value still matches.
func (l *RedisLocker) release(redisKey, owner string) Release {
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			value, getErr := l.client.Get(ctx, redisKey)
			if getErr != nil {
				if !errors.Is(getErr, redis.Nil) {
					err = fmt.Errorf("read lock owner: %w", getErr)
				}
				return
			}
			if value != owner {
				return
			}
			if delErr := l.client.Del(ctx, redisKey); delErr != nil {
				err = fmt.Errorf("delete lock: %w", delErr)
			}
		})
		return err
	}
}

// LocalLocker serializes holders of the same key inside one process.
type LocalLocker struct {
	mu          sync.Mutex
	slots       map[string]*slot
	waitTimeout time.Duration
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewLocalLocker builds an in-process keyed locker.
func NewLocalLocker(waitTimeout time.Duration) *LocalLocker {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	return &LocalLocker{slots: map[string]*slot{}, waitTimeout: waitTimeout}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.waiters++
	l.mu.Unlock()

	timer := time.NewTimer(l.waitTimeout)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.leave(key, s)
		return nil, errBusy(key)
	case <-ctx.Done():
		l.leave(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.leave(key, s)
		})
		return nil
	}, nil
}

// leave drops the slot once nobody holds or waits for it.
func (l *LocalLocker) leave(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, key)
	}
}

// Noop never blocks. Row locks in the database still apply.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// FromConfig picks the Redis locker when a client is available and the
// feature flag is on, otherwise the in-process one.
func FromConfig(cfg *config.Config, client redisStore) (Locker, error) {
	if cfg != nil && cfg.FeatureFlags.DistributedLck && client != nil {
		return NewRedisLocker(client, cfg.Locks)
	}
	wait := defaultWaitTimeout
	if cfg != nil {
		wait = cfg.Locks.WaitTimeout
	}
	return NewLocalLocker(wait), nil
}
