// Package local implements an in-process, channel-backed Transport. It
// is the "base" of the chain in tests and in single-process deployments
// where the bus has no real peers — sufficient to exercise the whole
// middleware chain and the bus adapter end to end, consistent with the
// spec's framing that concrete transport implementations are external
// collaborators whose interface, not their wire protocol, is in scope.
package local

import (
	"context"
	"sync"

	"github.com/o-tero/cachecoordinator/transport"
)

// Transport is a process-local pub/sub: Publish on one instance invokes
// every Subscribe-registered handler sharing the same *Broker across
// instances, simulating a real message bus for tests (see S5 in spec
// §8: two coordinator instances sharing a bus).
type Transport struct {
	broker *Broker
}

// Broker is the shared delivery point multiple local Transports attach
// to, standing in for a real message bus / network.
type Broker struct {
	mu       sync.RWMutex
	handlers map[string][]transport.Handler
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(map[string][]transport.Handler)}
}

// New attaches a Transport to broker.
func New(broker *Broker) *Transport {
	return &Transport{broker: broker}
}

func (t *Transport) Connect(ctx context.Context) error    { return nil }
func (t *Transport) Disconnect(ctx context.Context) error  { return nil }

// Publish delivers payload synchronously to every handler currently
// subscribed on channel, across every Transport sharing this broker.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.broker.mu.RLock()
	handlers := append([]transport.Handler(nil), t.broker.handlers[channel]...)
	t.broker.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, channel, payload)
	}
	return nil
}

// Subscribe registers handler for channel.
func (t *Transport) Subscribe(ctx context.Context, channel string, handler transport.Handler) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	t.broker.handlers[channel] = append(t.broker.handlers[channel], handler)
	return nil
}

// Unsubscribe removes every handler registered for channel by this
// broker (the local reference transport does not track per-Transport
// handler identity; a real transport would unsubscribe only its own).
func (t *Transport) Unsubscribe(ctx context.Context, channel string) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	delete(t.broker.handlers, channel)
	return nil
}
