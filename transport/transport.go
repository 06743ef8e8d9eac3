// Package transport defines the pluggable publish/subscribe capability
// the cache bus adapter is built on (spec §4.8), plus the middleware
// chain that wraps a base transport: compression, integrity, and retry.
// Each middleware preserves the Transport interface, so the chain is
// composed with plain function wrapping rather than inheritance, per the
// design notes' "model each as a small capability interface; compose via
// builders."
//
// Layer order at build time (innermost to outermost) is base -> retry ->
// compression -> integrity: Build wires that order so callers only ever
// see the outermost Transport.
package transport

import "context"

// Handler processes one inbound message body on a channel.
type Handler func(ctx context.Context, channel string, payload []byte)

// Transport is the capability interface every middleware wraps and
// preserves.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Unsubscribe(ctx context.Context, channel string) error
}

// Middleware wraps a base Transport, returning a Transport with the same
// interface.
type Middleware func(Transport) Transport

// Build composes base with middlewares applied innermost-to-outermost in
// the order given, i.e. Build(base, retryMW, compressionMW, integrityMW)
// yields integrity(compression(retry(base))) — matching spec §4.8's
// required layer order base -> retry -> compression -> integrity.
func Build(base Transport, middlewares ...Middleware) Transport {
	t := base
	for _, mw := range middlewares {
		t = mw(t)
	}
	return t
}
