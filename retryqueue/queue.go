// Package retryqueue implements the durable-in-memory message queue that
// transports cross-node invalidation events reliably, per spec §4.9: a
// scheduler fires every intervalMs, batches up to concurrency messages
// whose nextRetryAt has passed, and dead-letters anything exceeding
// maxAttempts. Backoff is grounded on the teacher's warming/service.go
// Config (BackoffBase, RetryAttempts) and warming/cron.go's scheduler
// shape, generalized from warming-job retry to transport-message retry.
package retryqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/o-tero/cachecoordinator/cacheerr"
	"github.com/o-tero/cachecoordinator/logging"
	"github.com/o-tero/cachecoordinator/metrics"
)

// Publisher is the minimal capability the queue needs from a transport:
// a single publish call it retries against. Any transport.Transport
// satisfies this structurally.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Message is a QueuedMessage per spec §3.
type Message struct {
	ID            string
	Channel       string
	Payload       []byte
	Attempts      int
	NextRetryAt   time.Time
	FirstFailedAt time.Time
	LastError     string
}

// Config holds the retry queue's tunables.
type Config struct {
	BaseDelay        time.Duration
	Interval         time.Duration
	MaxAttempts      int
	Backoff          Strategy
	RemoveDuplicates bool
	Concurrency      int
	MaxSize          int

	OnRetry      func(Message, error)
	OnDeadLetter func(Message, error)
}

// Queue is the retry queue. Its message list is mutated only from the
// scheduler goroutine, except for Enqueue which takes the lock from the
// caller's goroutine — the one deliberate exception to "mutated only by
// the scheduler," matching spec §5's resource-scoping note that external
// Enqueue calls are the entry point into an otherwise single-owner
// structure.
type Queue struct {
	cfg       Config
	publisher Publisher
	log       logging.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	messages map[string]*Message
	order    []string // message IDs in enqueue order; due messages are scanned in this order

	stop   chan struct{}
	done   chan struct{}
	ticker *time.Ticker
}

// New builds a Queue publishing through publisher. log/m may be zero
// values (logging.Nop(), nil) when observability isn't needed.
func New(cfg Config, publisher Publisher, log logging.Logger, m *metrics.Metrics) *Queue {
	if cfg.Backoff == nil {
		cfg.Backoff = Exponential{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if log.IsZero() {
		log = logging.Nop()
	}
	return &Queue{
		cfg:       cfg,
		publisher: publisher,
		log:       log,
		metrics:   m,
		messages:  make(map[string]*Message),
	}
}

// Enqueue adds a message for delivery on channel. When RemoveDuplicates
// is set, a (channel, payload) pair that is already pending is not added
// again: Enqueue returns the pending message's ID and leaves its attempts
// and next retry time unchanged. When the queue is at
// MaxSize, the newest message is rejected (Open Question #3's resolution)
// and a TransportError is returned instead of silently dropping the
// oldest entry.
func (q *Queue) Enqueue(channel string, payload []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cfg.RemoveDuplicates {
		for _, id := range q.order {
			m := q.messages[id]
			if m.Channel == channel && string(m.Payload) == string(payload) {
				return m.ID, nil
			}
		}
	}

	if q.cfg.MaxSize > 0 && len(q.messages) >= q.cfg.MaxSize {
		return "", cacheerr.NewTransportError(channel, errQueueFull)
	}

	id := uuid.NewString()
	now := time.Now()
	q.messages[id] = &Message{
		ID:            id,
		Channel:       channel,
		Payload:       payload,
		NextRetryAt:   now,
		FirstFailedAt: now,
	}
	q.order = append(q.order, id)
	return id, nil
}

// Size returns the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Start launches the periodic scheduler. It is idempotent-safe only in
// the sense that calling Stop then Start again builds a fresh ticker;
// calling Start twice without Stop leaks a goroutine, matching the
// single-owner contract in spec §5.
func (q *Queue) Start(ctx context.Context) {
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	q.ticker = time.NewTicker(q.cfg.Interval)

	go func() {
		defer close(q.done)
		defer q.ticker.Stop()
		for {
			select {
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			case <-q.ticker.C:
				q.tick(ctx)
			}
		}
	}()
}

// Stop cancels the outstanding ticker and waits for the in-flight tick,
// if any, to finish.
func (q *Queue) Stop() {
	if q.stop == nil {
		return
	}
	close(q.stop)
	<-q.done
}

func (q *Queue) tick(ctx context.Context) {
	due := q.popDue()
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, q.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, m := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(m *Message) {
			defer wg.Done()
			defer func() { <-sem }()
			q.process(ctx, m)
		}(m)
	}
	wg.Wait()
}

func (q *Queue) popDue() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var due []*Message
	for _, id := range q.order {
		m := q.messages[id]
		if !m.NextRetryAt.After(now) {
			due = append(due, m)
		}
	}
	return due
}

func (q *Queue) process(ctx context.Context, m *Message) {
	q.mu.Lock()
	m.Attempts++
	q.mu.Unlock()

	if q.cfg.OnRetry != nil {
		safeCall(func() { q.cfg.OnRetry(*m, nil) })
	}
	if q.metrics != nil {
		q.metrics.RetryAttempts.Inc()
	}

	err := q.publisher.Publish(ctx, m.Channel, m.Payload)
	if err == nil {
		q.remove(m.ID)
		return
	}

	q.mu.Lock()
	m.LastError = err.Error()
	attempts := m.Attempts
	q.mu.Unlock()

	if attempts >= q.cfg.MaxAttempts {
		q.remove(m.ID)
		if q.cfg.OnDeadLetter != nil {
			dlErr := cacheerr.NewDeadLetterError(m.ID, attempts, err)
			safeCall(func() { q.cfg.OnDeadLetter(*m, dlErr) })
		}
		if q.metrics != nil {
			q.metrics.DeadLetters.Inc()
		}
		q.log.Warn("message dead-lettered", map[string]any{"id": m.ID, "channel": m.Channel, "attempts": attempts})
		return
	}

	delay := q.cfg.Backoff.Delay(attempts, q.cfg.BaseDelay)
	q.mu.Lock()
	m.NextRetryAt = time.Now().Add(delay)
	q.mu.Unlock()
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.messages, id)
	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// safeCall swallows a panicking callback, matching spec §9's scheduler
// note: "a self-rescheduling timer whose task catches and swallows
// errors."
func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

var errQueueFull = queueFullError{}

type queueFullError struct{}

func (queueFullError) Error() string { return "retryqueue: queue at max size, newest message rejected" }
