package cache

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLRU_PutGet(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1024, 0)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(ctx, "a", []byte("alpha"))
	body, ok := c.Get(ctx, "a")
	if !ok {
		t.Fatal("expected cache hit, got miss")
	}
	if string(body) != "alpha" {
		t.Errorf("expected 'alpha', got '%s'", body)
	}

	c.Put(ctx, "a", []byte("alphabet"))
	body, _ = c.Get(ctx, "a")
	if string(body) != "alphabet" {
		t.Errorf("expected replaced body, got '%s'", body)
	}
	if c.Size() != 8 {
		t.Errorf("expected size 8, got %d", c.Size())
	}

	m := c.Metrics().Snapshot()
	if m.Hits != 2 || m.Misses != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestLRU_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(10, 0)

	c.Put(ctx, "a", []byte("1234"))
	c.Put(ctx, "b", []byte("1234"))
	// touch a so b becomes least recently used
	c.Get(ctx, "a")
	c.Put(ctx, "c", []byte("1234"))

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("expected a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if c.Metrics().Evictions.Load() != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Metrics().Evictions.Load())
	}

	// a single oversized entry is still kept
	c.Put(ctx, "huge", bytes.Repeat([]byte("x"), 64))
	if _, ok := c.Get(ctx, "huge"); !ok {
		t.Error("expected oversized entry to be kept alone")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestLRU_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(0, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Put(ctx, "k", []byte("v"))
	now = now.Add(30 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before ttl")
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be dropped, got %d entries", c.Len())
	}
}

func TestLRU_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(0, 0)
	for i := 0; i < 5; i++ {
		c.Put(ctx, fmt.Sprintf("k%d", i), []byte("v"))
	}
	c.Clear()
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("expected empty cache, got %d entries / %d bytes", c.Len(), c.Size())
	}
}

func TestLRU_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(1<<20, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Put(ctx, key, []byte(key))
				if body, ok := c.Get(ctx, key); ok && string(body) != key {
					t.Errorf("key %s returned %s", key, body)
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("expected 10 entries, got %d", c.Len())
	}
}

func TestSQLiteCache_PutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := NewSQLiteCache(path, 0)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}

	body := bytes.Repeat([]byte(`{"count":1234,"results":[]}`), 50)
	c.Put(ctx, "q1", body)

	got, ok := c.Get(ctx, "q1")
	if !ok {
		t.Fatal("expected cache hit, got miss")
	}
	if !bytes.Equal(got, body) {
		t.Error("body mismatch after snappy round trip")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
	if c.Metrics().SizeBytes.Load() != int64(len(body)) {
		t.Errorf("expected size %d, got %d", len(body), c.Metrics().SizeBytes.Load())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// entries survive a reopen
	c, err = NewSQLiteCache(path, 0)
	if err != nil {
		t.Fatalf("failed to reopen cache: %v", err)
	}
	defer c.Close()
	if _, ok := c.Get(ctx, "q1"); !ok {
		t.Error("expected entry to persist across reopen")
	}
	if _, ok := c.Get(ctx, "q2"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestSQLiteCache_TTLAndPrune(t *testing.T) {
	ctx := context.Background()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	defer c.Close()

	now := time.Unix(10_000, 0)
	c.now = func() time.Time { return now }

	c.Put(ctx, "old", []byte("a"))
	now = now.Add(2 * time.Hour)
	c.Put(ctx, "new", []byte("b"))

	if _, ok := c.Get(ctx, "old"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, ok := c.Get(ctx, "new"); !ok {
		t.Error("expected fresh entry to hit")
	}

	n, err := c.Prune(ctx)
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", c.Len())
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

var (
	_ Cache = (*LRU)(nil)
	_ Cache = (*SQLiteCache)(nil)
)
