package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTTLGetCachesValue(t *testing.T) {
	calls := 0
	c := NewTTL(time.Minute, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 42 {
			t.Fatalf("Get = %d", v)
		}
	}
	if calls != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls)
	}
}

func TestTTLGetRefreshesAfterExpiry(t *testing.T) {
	calls := 0
	c := NewTTL(time.Nanosecond, func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	ctx := context.Background()
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	time.Sleep(time.Millisecond)
	v, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 2 {
		t.Fatalf("Get = %d, want refreshed value 2", v)
	}
}

func TestTTLGetDoesNotCacheErrors(t *testing.T) {
	calls := 0
	c := NewTTL(time.Minute, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("source down")
		}
		return 7, nil
	})

	ctx := context.Background()
	if _, err := c.Get(ctx); err == nil {
		t.Fatal("Get succeeded, want error")
	}
	v, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 7 {
		t.Fatalf("Get = %d, want 7", v)
	}
}

func TestTTLInvalidate(t *testing.T) {
	calls := 0
	c := NewTTL(time.Minute, func(context.Context) (int, error) {
		calls++
		return calls, nil
	})

	ctx := context.Background()
	if _, err := c.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Invalidate()
	v, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 2 {
		t.Fatalf("Get = %d, want refetch after Invalidate", v)
	}
}
