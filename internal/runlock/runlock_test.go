package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), mr
}

func TestRedis(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("second acquire of the same scout is refused", func(t *testing.T) {
		t.Parallel()
		locker, mr := newRedisLocker(t, time.Minute)

		lock, err := locker.Acquire(ctx, "shop")
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if !mr.Exists(KeyPrefix + "shop") {
			t.Error("lock key not set")
		}
		if _, err := locker.Acquire(ctx, "shop"); !errors.Is(err, ErrLocked) {
			t.Errorf("second Acquire() error = %v, want ErrLocked", err)
		}
		if _, err := locker.Acquire(ctx, "blog"); err != nil {
			t.Errorf("Acquire() of another scout error = %v", err)
		}

		if err := lock.Release(ctx); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := locker.Acquire(ctx, "shop"); err != nil {
			t.Errorf("Acquire() after release error = %v", err)
		}
	})

	t.Run("expired lock can be taken and the old holder cannot release it", func(t *testing.T) {
		t.Parallel()
		locker, mr := newRedisLocker(t, time.Second)

		old, err := locker.Acquire(ctx, "shop")
		if err != nil {
			t.Fatal(err)
		}
		mr.FastForward(2 * time.Second)

		if _, err := locker.Acquire(ctx, "shop"); err != nil {
			t.Fatalf("Acquire() after expiry error = %v", err)
		}
		if err := old.Release(ctx); !errors.Is(err, ErrNotHeld) {
			t.Errorf("Release() of expired lock error = %v, want ErrNotHeld", err)
		}
		if !mr.Exists(KeyPrefix + "shop") {
			t.Error("stale release deleted the new holder's lock")
		}
	})

	t.Run("redis unavailable", func(t *testing.T) {
		t.Parallel()
		locker, mr := newRedisLocker(t, time.Minute)
		mr.Close()

		_, err := locker.Acquire(ctx, "shop")
		if err == nil || errors.Is(err, ErrLocked) {
			t.Errorf("Acquire() error = %v, want a connection error", err)
		}
	})
}

func TestLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mutual exclusion per scout", func(t *testing.T) {
		t.Parallel()
		locker := NewLocal(0)

		lock, err := locker.Acquire(ctx, "shop")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := locker.Acquire(ctx, "shop"); !errors.Is(err, ErrLocked) {
			t.Errorf("second Acquire() error = %v, want ErrLocked", err)
		}
		if err := lock.Release(ctx); err != nil {
			t.Fatal(err)
		}
		if err := lock.Release(ctx); !errors.Is(err, ErrNotHeld) {
			t.Errorf("double Release() error = %v, want ErrNotHeld", err)
		}
		if _, err := locker.Acquire(ctx, "shop"); err != nil {
			t.Errorf("Acquire() after release error = %v", err)
		}
	})

	t.Run("locks expire after the ttl", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		locker := NewLocal(time.Minute)
		locker.now = func() time.Time { return now }

		old, err := locker.Acquire(ctx, "shop")
		if err != nil {
			t.Fatal(err)
		}
		now = now.Add(2 * time.Minute)
		if _, err := locker.Acquire(ctx, "shop"); err != nil {
			t.Fatalf("Acquire() after expiry error = %v", err)
		}
		if err := old.Release(ctx); !errors.Is(err, ErrNotHeld) {
			t.Errorf("Release() of expired lock error = %v, want ErrNotHeld", err)
		}
	})
}
