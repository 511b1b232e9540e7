package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/growthledger"
	"github.com/xraph/growthledger/lock"
)

func setupTestLock(t *testing.T, opts ...lock.Option) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return lock.NewRedis(client, opts...), mr
}

func TestTryLock_Exclusive(t *testing.T) {
	l, _ := setupTestLock(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx)
	if err != nil {
		t.Fatalf("first TryLock: %v", err)
	}

	if _, err := l.TryLock(ctx); !errors.Is(err, growthledger.ErrSyncInProgress) {
		t.Fatalf("second TryLock = %v, want ErrSyncInProgress", err)
	}

	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	unlock2, err := l.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	_ = unlock2(ctx)
}

func TestTryLock_SetsTTL(t *testing.T) {
	l, mr := setupTestLock(t, lock.WithKey("gl:test"), lock.WithTTL(30*time.Second))

	if _, err := l.TryLock(context.Background()); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ttl := mr.TTL("gl:test"); ttl != 30*time.Second {
		t.Errorf("TTL = %v, want 30s", ttl)
	}
}

func TestTryLock_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	l, mr := setupTestLock(t, lock.WithTTL(time.Second))
	ctx := context.Background()

	staleUnlock, err := l.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := l.TryLock(ctx); err != nil {
		t.Fatalf("TryLock after expiry: %v", err)
	}

	if err := staleUnlock(ctx); err == nil {
		t.Error("expected stale unlock to report the lost lock")
	}
	if !mr.Exists(lock.DefaultKey) {
		t.Error("stale unlock removed the new owner's lock")
	}
}

func TestTryLock_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	l := lock.NewRedis(client)

	_, err := l.TryLock(context.Background())
	if err == nil {
		t.Fatal("expected error with redis down")
	}
	if errors.Is(err, growthledger.ErrSyncInProgress) {
		t.Error("connection failure must not look like a held lock")
	}
}
