package retryqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/o-tero/cachecoordinator/logging"
)

type fakePublisher struct {
	mu     sync.Mutex
	fail   bool
	calls  int
	lastCh string
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastCh = channel
	if p.fail {
		return errors.New("publish failed")
	}
	return nil
}

func (p *fakePublisher) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakePublisher) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func TestEnqueueRemoveDuplicates(t *testing.T) {
	pub := &fakePublisher{}
	q := New(Config{
		BaseDelay: time.Millisecond, Interval: time.Hour, MaxAttempts: 3,
		RemoveDuplicates: true,
	}, pub, logging.Nop(), nil)

	id1, err := q.Enqueue("ch1", []byte("payload"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := q.Enqueue("ch1", []byte("payload"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected duplicate enqueue to return the same id, got %s and %s", id1, id2)
	}
	if q.Size() != 1 {
		t.Errorf("expected size 1, got %d", q.Size())
	}
}

func TestEnqueueRejectsNewestWhenFull(t *testing.T) {
	pub := &fakePublisher{}
	q := New(Config{
		BaseDelay: time.Millisecond, Interval: time.Hour, MaxAttempts: 3,
		MaxSize: 1,
	}, pub, logging.Nop(), nil)

	if _, err := q.Enqueue("ch1", []byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.Enqueue("ch1", []byte("b")); err == nil {
		t.Error("expected the second, newest message to be rejected when full")
	}
	if q.Size() != 1 {
		t.Errorf("expected size to remain 1, got %d", q.Size())
	}
}

func TestSuccessfulDeliveryRemovesMessage(t *testing.T) {
	pub := &fakePublisher{}
	q := New(Config{
		BaseDelay: time.Millisecond, Interval: 10 * time.Millisecond, MaxAttempts: 3,
	}, pub, logging.Nop(), nil)

	q.Enqueue("ch1", []byte("payload"))

	ctx := context.Background()
	q.Start(ctx)
	defer q.Stop()

	deadline := time.Now().Add(time.Second)
	for q.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if q.Size() != 0 {
		t.Error("expected message to be delivered and removed")
	}
	if pub.CallCount() == 0 {
		t.Error("expected publisher to be called")
	}
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	pub := &fakePublisher{fail: true}

	var deadLettered []Message
	var mu sync.Mutex
	q := New(Config{
		BaseDelay: time.Millisecond, Interval: 10 * time.Millisecond, MaxAttempts: 2,
		OnDeadLetter: func(m Message, err error) {
			mu.Lock()
			defer mu.Unlock()
			deadLettered = append(deadLettered, m)
		},
	}, pub, logging.Nop(), nil)

	q.Enqueue("ch1", []byte("payload"))

	ctx := context.Background()
	q.Start(ctx)
	defer q.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(deadLettered)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deadLettered) != 1 {
		t.Fatalf("expected exactly 1 dead-lettered message, got %d", len(deadLettered))
	}
	if deadLettered[0].Attempts != 2 {
		t.Errorf("expected 2 attempts before dead-lettering, got %d", deadLettered[0].Attempts)
	}
	if q.Size() != 0 {
		t.Error("expected dead-lettered message to be removed from the queue")
	}
}

func TestOnRetryCallbackPanicDoesNotCrashScheduler(t *testing.T) {
	pub := &fakePublisher{}
	q := New(Config{
		BaseDelay: time.Millisecond, Interval: 10 * time.Millisecond, MaxAttempts: 3,
		OnRetry: func(m Message, err error) { panic("callback exploded") },
	}, pub, logging.Nop(), nil)

	q.Enqueue("ch1", []byte("payload"))

	ctx := context.Background()
	q.Start(ctx)
	defer q.Stop()

	time.Sleep(50 * time.Millisecond)

	if pub.CallCount() == 0 {
		t.Error("expected delivery to proceed despite a panicking OnRetry callback")
	}
}
