package ttlcache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestValueExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	entry := New[bool](clock.Now)

	if _, ok := entry.Get(); ok {
		t.Fatalf("expected empty entry")
	}

	entry.Set(true, 30*time.Second)
	if v, ok := entry.Get(); !ok || !v {
		t.Fatalf("expected fresh value, got %v %v", v, ok)
	}

	clock.now = clock.now.Add(29 * time.Second)
	if _, ok := entry.Get(); !ok {
		t.Fatalf("expected value before expiry")
	}

	clock.now = clock.now.Add(time.Second)
	if _, ok := entry.Get(); ok {
		t.Fatalf("expected value to expire at ttl")
	}
}

func TestValueZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	entry := New[int](clock.Now)
	entry.Set(16110, 0)

	clock.now = clock.now.Add(1000 * time.Hour)
	if v, ok := entry.Get(); !ok || v != 16110 {
		t.Fatalf("expected 16110, got %d %v", v, ok)
	}
}

func TestValueClear(t *testing.T) {
	entry := New[int](nil)
	entry.Set(1, time.Minute)
	entry.Clear()
	if _, ok := entry.Get(); ok {
		t.Fatalf("expected cleared entry")
	}
}
