package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type record struct {
	ID   int    `json:"id"`
	PHID string `json:"phid"`
}

func TestCache_PutGet(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := RevisionKey("https://phab.test/api/", "id", "12")
	value := record{ID: 12, PHID: "PHID-DREV-abc"}

	// Miss before put
	var got record
	if c.Get(key, &got) {
		t.Error("Expected cache miss before put")
	}

	if err := c.Put(key, value); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	if !c.Get(key, &got) {
		t.Fatal("Expected cache hit after put")
	}
	if got != value {
		t.Errorf("Got = %+v, want %+v", got, value)
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 1) // 1 second TTL
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	key := "expire-test"
	if err := c.Put(key, "data"); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	var s string
	if !c.Get(key, &s) {
		t.Error("Expected cache hit before expiration")
	}

	time.Sleep(1100 * time.Millisecond)

	if c.Get(key, &s) {
		t.Error("Expected cache miss after TTL expiration")
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(false, "", 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.Enabled() {
		t.Error("Cache should be disabled")
	}

	if err := c.Put("key", "value"); err != nil {
		t.Errorf("Put on disabled cache should not error: %v", err)
	}
	var s string
	if c.Get("key", &s) {
		t.Error("Get on disabled cache should always miss")
	}
	if _, err := c.Clear(); err != nil {
		t.Errorf("Clear on disabled cache should not error: %v", err)
	}
}

func TestCache_Nil(t *testing.T) {
	var c *Cache
	if c.Enabled() {
		t.Error("nil cache should report disabled")
	}
	var s string
	if c.Get("key", &s) {
		t.Error("nil cache should always miss")
	}
	if err := c.Put("key", "v"); err != nil {
		t.Errorf("Put on nil cache: %v", err)
	}
}

func TestCache_WrongShape(t *testing.T) {
	c, err := New(true, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := c.Put("k", "not a record"); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	var r record
	if c.Get("k", &r) {
		t.Error("Get should miss when the stored value does not decode")
	}
}

func TestCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if err := c.Put(key, i); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	entries, _ := os.ReadDir(dir)
	jsonCount := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			jsonCount++
		}
	}
	if jsonCount != 5 {
		t.Fatalf("Expected 5 cache entries, got %d", jsonCount)
	}

	removed, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if removed != 5 {
		t.Errorf("Clear removed %d entries, want 5", removed)
	}

	entries, _ = os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			t.Errorf("entry %s survived Clear", e.Name())
		}
	}
}

func TestCache_GetStats(t *testing.T) {
	dir := t.TempDir()
	c, err := New(true, dir, 86400)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}

	c.Put("key1", record{ID: 1})
	c.Put("key2", record{ID: 2})

	stats, err = c.GetStats()
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.Entries != 2 {
		t.Errorf("Entries = %d, want 2", stats.Entries)
	}
	if stats.TotalBytes <= 0 {
		t.Error("TotalBytes should be > 0")
	}
	if stats.Dir != dir {
		t.Errorf("Dir = %q, want %q", stats.Dir, dir)
	}
}

func TestHashKey(t *testing.T) {
	h1 := HashKey("test")
	h2 := HashKey("test")
	h3 := HashKey("other")

	if h1 != h2 {
		t.Error("Same input should produce same hash")
	}
	if h1 == h3 {
		t.Error("Different input should produce different hash")
	}
	if len(h1) != 64 { // SHA-256 hex = 64 chars
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestRevisionKey(t *testing.T) {
	k1 := RevisionKey("https://phab.test/api/", "id", "1")
	k2 := RevisionKey("https://phab.test/api", "id", "1")
	k3 := RevisionKey("https://other.test/api/", "id", "1")
	k4 := RevisionKey("https://phab.test/api/", "phid", "1")

	if k1 != k2 {
		t.Error("Trailing slash should not change the key")
	}
	if k1 == k3 {
		t.Error("Different servers should produce different keys")
	}
	if k1 == k4 {
		t.Error("Different fields should produce different keys")
	}
	if !strings.HasPrefix(k1, "revision:") {
		t.Errorf("RevisionKey = %q, want revision: prefix", k1)
	}
}
