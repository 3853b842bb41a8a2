package runlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix prefixes every lock key stored in Redis.
const KeyPrefix = "driftwatch:runlock:"

// Locker hands out per-scout locks.
type Locker interface {
	// Acquire takes the lock of scout without waiting. It returns ErrLocked
	// when the lock is held elsewhere.
	Acquire(ctx context.Context, scout string) (Lock, error)
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker backed by SET NX PX.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis creates a Redis locker. Locks expire after ttl.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, scout string) (Lock, error) {
	key := KeyPrefix + scout
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock for %s: %w", scout, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, scout)
	}
	return &redisLock{client: r.client, key: key, token: token}, nil
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	held map[string]localEntry
}

type localEntry struct {
	token   string
	expires time.Time
}

// NewLocal creates a Local locker. A ttl of zero means locks never expire.
func NewLocal(ttl time.Duration) *Local {
	return &Local{ttl: ttl, now: time.Now, held: make(map[string]localEntry)}
}

// Acquire implements Locker.
func (l *Local) Acquire(_ context.Context, scout string) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[scout]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, scout)
	}

	e := localEntry{token: uuid.NewString()}
	if l.ttl > 0 {
		e.expires = now.Add(l.ttl)
	}
	l.held[scout] = e
	return &localLock{owner: l, scout: scout, token: e.token}, nil
}

type localLock struct {
	owner *Local
	scout string
	token string
}

func (l *localLock) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	e, ok := l.owner.held[l.scout]
	if !ok || e.token != l.token {
		return ErrNotHeld
	}
	delete(l.owner.held, l.scout)
	return nil
}
