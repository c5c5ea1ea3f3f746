package storage

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func TestBoltCacheStoresAndExpiresResponses(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		TTL:             time.Minute,
		CleanupInterval: time.Hour,
	}

	cache, err := openBolt(dir+"/cache.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, found, err := cache.Get("GET /users/1"); err != nil || found {
		t.Fatalf("expected miss, found=%v err=%v", found, err)
	}

	if err := cache.Put("GET /users/1", []byte(`{"id":"1"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	body, found, err := cache.Get("GET /users/1")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if string(body) != `{"id":"1"}` {
		t.Fatalf("unexpected body %q", body)
	}

	now = now.Add(2 * time.Minute)
	if _, found, err := cache.Get("GET /users/1"); err != nil || found {
		t.Fatalf("expected entry to expire, found=%v err=%v", found, err)
	}
}

func TestBoltCacheCleanupRemovesExpired(t *testing.T) {
	cache, err := openBolt(t.TempDir()+"/cache.db", normalizeOptions(Options{TTL: time.Second, CleanupInterval: time.Second}))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	defer cache.Close()

	now := time.Now()
	cache.now = func() time.Time { return now }
	if err := cache.Put("a", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(5 * time.Second)
	if err := cache.maybeCleanupExpired(now); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	var remaining int
	_ = cache.db.View(func(tx *bolt.Tx) error {
		remaining = tx.Bucket([]byte(responseBucket)).Stats().KeyN
		return nil
	})
	if remaining != 0 {
		t.Fatalf("expected cleanup to remove expired entries, %d left", remaining)
	}
}

func TestNewCacheSupportsNoop(t *testing.T) {
	cache, err := NewCache("none", "", Options{})
	if err != nil {
		t.Fatalf("NewCache none: %v", err)
	}
	if err := cache.Put("x", []byte("y")); err != nil {
		t.Fatalf("noop cache Put: %v", err)
	}
	if _, found, _ := cache.Get("x"); found {
		t.Fatalf("noop cache must never hit")
	}
}

func TestNewCacheRejectsUnknown(t *testing.T) {
	if _, err := NewCache("redis", "", Options{}); err == nil {
		t.Fatalf("expected unsupported cache type error")
	}
	if _, err := NewCache("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
