package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) ExtendLock(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) ReleaseLock(_ context.Context, key, owner string) (bool, error) {
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

// expire simulates the lease running out.
func (m *memoryLockStore) expire(key string) { delete(m.values, key) }

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "sf:lock:cron-worker:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "sf:lock:cron-worker:test", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if holder := store.values["sf:lock:cron-worker:test"]; !strings.Contains(holder, "/") {
		t.Fatalf("holder id should carry host and token, got %q", holder)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-holder: %v", err)
	}
	if _, ok := store.values["sf:lock:cron-worker:test"]; !ok {
		t.Fatal("non-holder release must not drop the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLockExtendDetectsLostLease(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock, _ := NewRedisLock(store, "k", 0)

	if ok, _ := lock.Extend(ctx); ok {
		t.Fatal("extend without a lease must report false")
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	if store.ttls["k"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["k"])
	}
	if ok, err := lock.Extend(ctx); err != nil || !ok {
		t.Fatalf("extend while held: ok=%v err=%v", ok, err)
	}

	store.expire("k")
	other, _ := NewRedisLock(store, "k", time.Minute)
	if ok, _ := other.Acquire(ctx); !ok {
		t.Fatal("another worker should take the expired lease")
	}
	if ok, _ := lock.Extend(ctx); ok {
		t.Fatal("extend after losing the lease must report false")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after loss: %v", err)
	}
	if _, held := store.values["k"]; !held {
		t.Fatal("stale holder must not release the new lease")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewRedisLock(newMemoryLockStore(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty key")
	}
}
