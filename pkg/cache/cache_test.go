package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache.Get should always miss")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "graph:abc", []byte("payload"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "graph:abc")
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "graph:abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ = c.Get(ctx, "graph:abc"); hit {
		t.Error("deleted entry should miss")
	}

	// Deleting a missing key is fine.
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiration(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("expired entry should miss")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h3 := Hash([]byte("world")); h1 == h3 {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	gk1 := k.GraphKey("/repos/api", "hash-a")
	gk2 := k.GraphKey("/repos/api", "hash-b")
	if gk1 == gk2 {
		t.Error("changed manifest content must produce a different graph key")
	}
	if gk1 != k.GraphKey("/repos/api", "hash-a") {
		t.Error("graph keys must be deterministic")
	}

	if k.ResolutionKey("req-hash") == k.ResolutionKey("other-hash") {
		t.Error("different requirement sets must produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "team-a:")
	key := scoped.GraphKey("/repos/api", "hash")
	if len(key) < 8 || key[:7] != "team-a:" {
		t.Errorf("scoped key should be prefixed: %s", key)
	}

	// Nil inner falls back to the default keyer.
	fallback := NewScopedKeyer(nil, "p:")
	if fallback.ResolutionKey("h")[:2] != "p:" {
		t.Error("nil inner should still produce prefixed keys")
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	base := errors.New("connection refused")
	err := Retryable(base)
	if !IsRetryable(err) {
		t.Error("wrapped error should be retryable")
	}
	if err.Error() != base.Error() {
		t.Errorf("message should be preserved: %s", err.Error())
	}
	if IsRetryable(base) {
		t.Error("unwrapped error should not be retryable")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return nil }); err != nil {
		t.Errorf("should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("should call once: %d", calls)
	}

	permanent := errors.New("bad key")
	calls = 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return permanent }); err != permanent {
		t.Errorf("should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("should not retry a non-retryable error: %d", calls)
	}

	calls = 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("should succeed after one retry: err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errors.New("transient"))
	})
	if err != context.Canceled {
		t.Errorf("should return context error: %v", err)
	}
}

func TestOpen(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*NullCache); !ok {
		t.Errorf("empty location should disable caching, got %T", c)
	}

	c, err = Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*FileCache); !ok {
		t.Errorf("path location should open a file cache, got %T", c)
	}

	c, err = Open("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok := c.(*RedisCache); !ok {
		t.Errorf("redis URL should open a redis cache, got %T", c)
	}
}
