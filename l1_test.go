package querycache

import (
	"testing"
	"time"
)

func TestL1EvictsLeastRecentlyUsed(t *testing.T) {
	c := newL1(2)

	c.Put("k1", 1, 8, time.Minute)
	c.Put("k2", 2, 8, time.Minute)

	// touch k2 so k1 holds the oldest access time and becomes the victim
	if _, ok := c.Get("k2"); !ok {
		t.Fatalf("k2 missing")
	}
	c.Put("k3", 3, 8, time.Minute)

	if _, ok := c.Get("k1"); ok {
		t.Fatalf("k1 should have been evicted")
	}
	if _, ok := c.Get("k2"); !ok {
		t.Fatalf("k2 evicted unexpectedly")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Fatalf("k3 evicted unexpectedly")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d after eviction, want 2", c.Len())
	}
}

func TestL1ReplaceDoesNotGrow(t *testing.T) {
	c := newL1(2)
	c.Put("k", "a", 4, time.Minute)
	c.Put("k", "b", 10, time.Minute)

	if c.Len() != 1 {
		t.Fatalf("len=%d, want 1", c.Len())
	}
	if c.Bytes() != 10 {
		t.Fatalf("bytes=%d after replace, want 10", c.Bytes())
	}
	v, ok := c.Get("k")
	if !ok || v.(string) != "b" {
		t.Fatalf("replace not wholesale: %v %v", v, ok)
	}
}

func TestL1LazyExpiry(t *testing.T) {
	c := newL1(10)
	c.Put("k", 1, 4, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not deleted on read")
	}
	if c.Bytes() != 0 {
		t.Fatalf("bytes not released on expiry")
	}
}

func TestL1EvictIdle(t *testing.T) {
	c := newL1(10)
	c.Put("old", 1, 4, time.Hour)
	time.Sleep(25 * time.Millisecond)
	c.Put("fresh", 2, 4, time.Hour)

	if n := c.EvictIdle(10 * time.Millisecond); n != 1 {
		t.Fatalf("EvictIdle removed %d, want 1", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry evicted")
	}
	if _, ok := c.Get("old"); ok {
		t.Fatalf("idle entry survived")
	}
}

func TestL1RemoveReportsPresence(t *testing.T) {
	c := newL1(10)
	c.Put("k", 1, 4, time.Minute)

	if !c.Remove("k") {
		t.Fatalf("Remove on present key returned false")
	}
	if c.Remove("k") {
		t.Fatalf("Remove on absent key returned true")
	}
}
