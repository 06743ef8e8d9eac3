package transport

import (
	"context"

	"github.com/o-tero/cachecoordinator/retryqueue"
)

// WithRetry builds a Middleware that, on a Publish failure, enqueues the
// message into queue and reports success anyway (fire-and-forget): the
// spec requires publish failures on the coordinator path to never block
// success semantics, with delivery retried out of band by the queue.
func WithRetry(queue *retryqueue.Queue) Middleware {
	return func(next Transport) Transport {
		return &retryTransport{next: next, queue: queue}
	}
}

type retryTransport struct {
	next  Transport
	queue *retryqueue.Queue
}

func (t *retryTransport) Connect(ctx context.Context) error    { return t.next.Connect(ctx) }
func (t *retryTransport) Disconnect(ctx context.Context) error { return t.next.Disconnect(ctx) }

func (t *retryTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := t.next.Publish(ctx, channel, payload); err != nil {
		if _, qerr := t.queue.Enqueue(channel, payload); qerr != nil {
			return qerr
		}
		return nil
	}
	return nil
}

func (t *retryTransport) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return t.next.Subscribe(ctx, channel, handler)
}

func (t *retryTransport) Unsubscribe(ctx context.Context, channel string) error {
	return t.next.Unsubscribe(ctx, channel)
}
