package entry

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	now := time.Now()
	e := New("v1", now, 10*time.Second, 30*time.Second, []string{"a", "b"})

	if e.Value != "v1" {
		t.Errorf("expected value v1, got %v", e.Value)
	}
	if !e.StaleAt.Equal(now.Add(10 * time.Second)) {
		t.Errorf("expected staleAt %v, got %v", now.Add(10*time.Second), e.StaleAt)
	}
	if !e.GCAt.Equal(now.Add(30 * time.Second)) {
		t.Errorf("expected gcAt %v, got %v", now.Add(30*time.Second), e.GCAt)
	}
}

func TestIsFreshIsStaleIsGCd(t *testing.T) {
	now := time.Now()
	e := New("v1", now, 10*time.Second, 30*time.Second, nil)

	if !e.IsFresh(now.Add(5 * time.Second)) {
		t.Error("expected fresh before staleAt")
	}
	if e.IsFresh(now.Add(15 * time.Second)) {
		t.Error("expected not fresh after staleAt")
	}

	if !e.IsStale(now.Add(15 * time.Second)) {
		t.Error("expected stale between staleAt and gcAt")
	}
	if e.IsStale(now.Add(5 * time.Second)) {
		t.Error("expected not stale while still fresh")
	}
	if e.IsStale(now.Add(35 * time.Second)) {
		t.Error("expected not stale once gc'd")
	}

	if !e.IsGCd(now.Add(30 * time.Second)) {
		t.Error("expected gc'd at exactly gcAt")
	}
	if e.IsGCd(now.Add(29 * time.Second)) {
		t.Error("expected not gc'd before gcAt")
	}
}

func TestEagerThresholdCrossed(t *testing.T) {
	now := time.Now()
	e := New("v1", now, 10*time.Second, 30*time.Second, nil)

	if e.EagerThresholdCrossed(now.Add(5*time.Second), 0.8) {
		t.Error("50% elapsed should not cross an 80% threshold")
	}
	if !e.EagerThresholdCrossed(now.Add(9*time.Second), 0.8) {
		t.Error("90% elapsed should cross an 80% threshold")
	}
}

func TestWithStaleNow(t *testing.T) {
	now := time.Now()
	e := New("v1", now, 10*time.Second, 30*time.Second, nil)
	gcAt := e.GCAt

	later := now.Add(time.Second)
	updated := e.WithStaleNow(later)

	if !updated.StaleAt.Equal(later) {
		t.Errorf("expected staleAt %v, got %v", later, updated.StaleAt)
	}
	if !updated.GCAt.Equal(gcAt) {
		t.Error("expected gcAt to be unchanged")
	}
	if !e.StaleAt.Equal(now.Add(10 * time.Second)) {
		t.Error("original entry should be unmodified")
	}
}

func TestHasTag(t *testing.T) {
	e := New("v1", time.Now(), time.Second, time.Second, []string{"user:1", "profile"})

	if !e.HasTag("profile") {
		t.Error("expected HasTag(profile) to be true")
	}
	if e.HasTag("missing") {
		t.Error("expected HasTag(missing) to be false")
	}
}
