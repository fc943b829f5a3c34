package memory

import (
	"context"
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Now()
	now := base
	m.SetClock(func() time.Time { return now })

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatalf("live entry missed")
	}

	now = base.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expired entry served")
	}

	// No TTL means no expiry.
	if err := m.Set(ctx, "p", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	now = base.Add(24 * 365 * time.Hour)
	if _, ok, _ := m.Get(ctx, "p"); !ok {
		t.Fatalf("persistent entry expired")
	}
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Now()
	now := base
	m.SetClock(func() time.Time { return now })

	if ok, _ := m.SetNX(ctx, "k", []byte("a"), time.Minute); !ok {
		t.Fatalf("first SetNX rejected")
	}
	if ok, _ := m.SetNX(ctx, "k", []byte("b"), time.Minute); ok {
		t.Fatalf("second SetNX accepted while key live")
	}
	v, _, _ := m.Get(ctx, "k")
	if string(v) != "a" {
		t.Fatalf("value overwritten: %q", v)
	}

	// After expiry the slot frees up.
	now = base.Add(2 * time.Minute)
	if ok, _ := m.SetNX(ctx, "k", []byte("b"), time.Minute); !ok {
		t.Fatalf("SetNX rejected after expiry")
	}
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	m := New()

	m.Set(ctx, "k", []byte("token-1"), 0)

	if ok, _ := m.CompareAndDelete(ctx, "k", "token-2"); ok {
		t.Fatalf("deleted with wrong token")
	}
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatalf("entry gone after failed compare")
	}
	if ok, _ := m.CompareAndDelete(ctx, "k", "token-1"); !ok {
		t.Fatalf("matching token rejected")
	}
	if ok, _ := m.CompareAndDelete(ctx, "k", "token-1"); ok {
		t.Fatalf("second delete of absent key succeeded")
	}
}

func TestCountWindowPrunes(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Now()

	window := 10 * time.Second
	if n, _ := m.CountWindow(ctx, "r", "e1", base, window); n != 1 {
		t.Fatalf("count=%d want 1", n)
	}
	if n, _ := m.CountWindow(ctx, "r", "e2", base.Add(time.Second), window); n != 2 {
		t.Fatalf("count=%d want 2", n)
	}
	// e1 and e2 fall out of the trailing window.
	if n, _ := m.CountWindow(ctx, "r", "e3", base.Add(15*time.Second), window); n != 1 {
		t.Fatalf("count=%d want 1 after pruning", n)
	}
}

func TestScanAndSets(t *testing.T) {
	ctx := context.Background()
	m := New()

	m.Set(ctx, "cart:u1", []byte("a"), 0)
	m.Set(ctx, "cart:u2", []byte("b"), 0)
	m.Set(ctx, "user:u1", []byte("c"), 0)

	keys, err := m.Scan(ctx, "cart:*")
	if err != nil || len(keys) != 2 {
		t.Fatalf("Scan: keys=%v err=%v", keys, err)
	}

	m.SAdd(ctx, "tag:promo", "cart:u1")
	m.SAdd(ctx, "tag:promo", "cart:u2", "cart:u1") // dup member
	members, err := m.SMembers(ctx, "tag:promo")
	if err != nil || len(members) != 2 {
		t.Fatalf("SMembers: %v err=%v", members, err)
	}

	// Del drops the set alongside the value keyspace.
	if _, err := m.Del(ctx, "tag:promo"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if members, _ := m.SMembers(ctx, "tag:promo"); len(members) != 0 {
		t.Fatalf("set survived Del: %v", members)
	}
}

func TestMGetMSet(t *testing.T) {
	ctx := context.Background()
	m := New()

	if err := m.MSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, 0); err != nil {
		t.Fatalf("MSet: %v", err)
	}
	out, err := m.MGet(ctx, []string{"a", "missing", "b"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if string(out[0]) != "1" || out[1] != nil || string(out[2]) != "2" {
		t.Fatalf("MGet slots: %q", out)
	}
}
