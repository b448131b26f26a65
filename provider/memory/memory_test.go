package memory

import (
	"context"
	"testing"
	"time"
)

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	p := New()

	if _, ok, err := p.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "k")
	if !ok || err != nil || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}

	p.Set(ctx, "k2", []byte("v2"), 0)
	n, err := p.Del(ctx, "k", "k2", "missing")
	if err != nil || n != 2 {
		t.Fatalf("Del: n=%d err=%v", n, err)
	}
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	p := New()

	in := []byte("abc")
	p.Set(ctx, "k", in, 0)
	in[0] = 'Z'

	out, _, _ := p.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("stored value aliased caller slice: %q", out)
	}
	out[0] = 'Z'
	again, _, _ := p.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliased stored slice: %q", again)
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	p := New()

	p.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	if _, ok, _ := p.Get(ctx, "k"); !ok {
		t.Fatalf("entry expired early")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("entry survived its TTL")
	}
}

func TestKeysPrefixPattern(t *testing.T) {
	ctx := context.Background()
	p := New()

	p.Set(ctx, "app:query:aaaa", []byte("1"), 0)
	p.Set(ctx, "app:query:bbbb", []byte("2"), 0)
	p.Set(ctx, "app:deps:users", []byte("3"), 0)
	p.Set(ctx, "app:query:expired", []byte("4"), time.Nanosecond)
	time.Sleep(time.Millisecond)

	got, err := p.Keys(ctx, "app:query:*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Keys matched %v, want the two live query keys", got)
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	p := New()
	p.Set(ctx, "k", []byte("v"), 0)

	info, err := p.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info["backend"] != "memory" || info["entries"] != "1" {
		t.Fatalf("Info: %v", info)
	}
}
