package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/o-tero/cachecoordinator/breaker"
	"github.com/o-tero/cachecoordinator/drivers/memasync"
	"github.com/o-tero/cachecoordinator/drivers/memory"
)

func newTestCoordinator(t *testing.T) (*Coordinator[string], *memasync.Driver[string]) {
	t.Helper()
	l2 := memasync.New[string]()
	if err := l2.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected error connecting l2: %v", err)
	}
	c := New(Params[string]{
		Config:  Config{DefaultStaleTime: time.Minute, DefaultGCTime: time.Hour},
		L1:      memory.New[string](0),
		L2:      l2,
		Breaker: breaker.New(time.Minute, breaker.WithFailureThreshold(2)),
	})
	return c, l2
}

func TestSetThenGetRoundTrip(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", "value1", SetOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := c.Get(ctx, "key1", GetOptions{})
	if !ok || v != "value1" {
		t.Errorf("expected value1, got %v, %v", v, ok)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, ok := c.Get(context.Background(), "missing", GetOptions{})
	if ok {
		t.Error("expected a miss for an unset key")
	}
}

func TestGetBackfillsL1FromL2(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()

	e, err := c.buildEntry("from-l2", SetOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l2.Set(ctx, "key1", e)

	v, ok := c.Get(ctx, "key1", GetOptions{})
	if !ok || v != "from-l2" {
		t.Fatalf("expected from-l2, got %v, %v", v, ok)
	}

	l2.InjectFailure(true)
	v, ok = c.Get(ctx, "key1", GetOptions{})
	if !ok || v != "from-l2" {
		t.Errorf("expected L1 backfill to serve the key without hitting L2, got %v, %v", v, ok)
	}
}

func TestDeleteRemovesFromBothTiers(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "value1", SetOptions{})

	count := c.Delete(ctx, "key1")
	if count != 1 {
		t.Errorf("expected 1 deleted key, got %d", count)
	}
	if _, ok := c.Get(ctx, "key1", GetOptions{}); ok {
		t.Error("expected key to be gone from L1")
	}
	if _, ok, _ := l2.Get(ctx, "key1"); ok {
		t.Error("expected key to be gone from L2")
	}
}

func TestHasReflectsL1AndL2(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	if c.Has(ctx, "key1") {
		t.Error("expected Has to be false before Set")
	}
	c.Set(ctx, "key1", "v", SetOptions{})
	if !c.Has(ctx, "key1") {
		t.Error("expected Has to be true after Set")
	}
}

func TestClearEmptiesBothTiers(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{})
	c.Set(ctx, "key2", "v2", SetOptions{})

	c.Clear(ctx)

	if c.Has(ctx, "key1") || c.Has(ctx, "key2") {
		t.Error("expected all keys gone after Clear")
	}
	if _, ok, _ := l2.Get(ctx, "key1"); ok {
		t.Error("expected L2 cleared too")
	}
}

func TestInvalidateTagsDeletesTaggedKeysOnly(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{Tags: []string{"group-a"}})
	c.Set(ctx, "key2", "v2", SetOptions{Tags: []string{"group-b"}})

	count := c.InvalidateTags(ctx, "group-a")
	if count != 1 {
		t.Errorf("expected 1 key invalidated, got %d", count)
	}
	if c.Has(ctx, "key1") {
		t.Error("expected key1 to be invalidated")
	}
	if !c.Has(ctx, "key2") {
		t.Error("expected key2, tagged differently, to survive")
	}
}

func TestPullGetsThenDeletes(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{})

	v, ok := c.Pull(ctx, "key1")
	if !ok || v != "v1" {
		t.Fatalf("expected v1, got %v, %v", v, ok)
	}
	if c.Has(ctx, "key1") {
		t.Error("expected key to be gone after Pull")
	}
}

func TestExpireMarksEntryStaleImmediately(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{})

	if !c.Expire(ctx, "key1") {
		t.Fatal("expected Expire to report the key existed")
	}

	e, ok := c.l1.Get("key1")
	if !ok {
		t.Fatal("expected entry to still exist in L1")
	}
	if e.IsFresh(time.Now()) {
		t.Error("expected entry to no longer be fresh after Expire")
	}
}

func TestCircuitBreakerOpensAfterRepeatedL2Failures(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()
	l2.InjectFailure(true)

	c.Set(ctx, "key1", "v1", SetOptions{})
	if _, ok := c.Get(ctx, "unrelated-key", GetOptions{}); ok {
		t.Error("expected a miss when L2 is failing")
	}
	if _, ok := c.Get(ctx, "unrelated-key-2", GetOptions{}); ok {
		t.Error("expected a miss when L2 is failing")
	}

	if !c.cb.IsOpen() {
		t.Error("expected the circuit breaker to be open after repeated L2 failures")
	}
}

func TestApplyInvalidateKeysNeverTouchesL2(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{})

	c.ApplyInvalidateKeys([]string{"key1"})

	if c.Has(ctx, "key1") {
		t.Error("expected ApplyInvalidateKeys to remove the key locally")
	}
	if _, ok, _ := l2.Get(ctx, "key1"); !ok {
		t.Error("expected ApplyInvalidateKeys to leave L2 untouched")
	}
}

func TestApplyClearIsLocalOnly(t *testing.T) {
	c, l2 := newTestCoordinator(t)
	ctx := context.Background()
	c.Set(ctx, "key1", "v1", SetOptions{})

	c.ApplyClear()

	if c.Has(ctx, "key1") {
		t.Error("expected ApplyClear to clear L1")
	}
	if _, ok, _ := l2.Get(ctx, "key1"); !ok {
		t.Error("expected ApplyClear to leave L2 untouched")
	}
}

func TestSetRejectsStaleTimeGreaterThanGCTime(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	err := c.Set(ctx, "key1", "v1", SetOptions{StaleTime: time.Hour, GCTime: time.Minute})
	if err == nil {
		t.Error("expected an error when staleTime exceeds gcTime")
	}
}
