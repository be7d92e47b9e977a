package feedcache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if _, ok, _ := c.Get(ctx, "page-0"); ok {
		t.Fatal("empty cache returned a hit")
	}

	if err := c.Set(ctx, "page-0", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, ok, err := c.Get(ctx, "page-0")
	if err != nil || !ok {
		t.Fatalf("get after set: ok=%v err=%v", ok, err)
	}
	if string(value) != "payload" {
		t.Fatalf("got %q", value)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if err := c.Set(ctx, "page-0", []byte("payload"), -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "page-0"); ok {
		t.Fatal("expired entry returned a hit")
	}
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_ = c.Set(ctx, "page-0", []byte("a"), time.Minute)
	_ = c.Set(ctx, "page-1", []byte("b"), time.Minute)

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "page-0"); ok {
		t.Fatal("invalidated entry returned a hit")
	}
	if _, ok, _ := c.Get(ctx, "page-1"); ok {
		t.Fatal("invalidated entry returned a hit")
	}
}
