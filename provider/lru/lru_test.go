package lru

import (
	"context"
	"testing"
	"time"
)

func TestGetSetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, _ := p.Get(ctx, "a"); ok {
		t.Fatalf("expected miss")
	}
	if ok, err := p.Set(ctx, "a", []byte("1"), 1, 0); err != nil || !ok {
		t.Fatalf("Set ok=%v err=%v", ok, err)
	}
	if b, ok, _ := p.Get(ctx, "a"); !ok || string(b) != "1" {
		t.Fatalf("Get=%q,%v", b, ok)
	}
	_ = p.Del(ctx, "a")
	if _, ok, _ := p.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	p, err := New(4)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	_, _ = p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	now = now.Add(59 * time.Second)
	if _, ok, _ := p.Get(ctx, "k"); !ok {
		t.Fatalf("entry expired too early")
	}
	now = now.Add(2 * time.Second)
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
	if p.Len() != 0 {
		t.Fatalf("expired entry not removed, len=%d", p.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	p, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = p.Set(ctx, "a", []byte("a"), 1, 0)
	_, _ = p.Set(ctx, "b", []byte("b"), 1, 0)
	_, _, _ = p.Get(ctx, "a") // a becomes most recent
	_, _ = p.Set(ctx, "c", []byte("c"), 1, 0)

	if _, ok, _ := p.Get(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok, _ := p.Get(ctx, "a"); !ok {
		t.Fatalf("a should have survived")
	}
}

func TestInvalidSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for size 0")
	}
}
