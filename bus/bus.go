// Package bus implements the cache bus adapter (C8): it publishes and
// applies cross-node invalidation events over the three channels named
// in spec §4.7, and applies incoming events locally (L1 + tag index)
// without re-publishing. It is grounded on the teacher's
// cache-manager/subscriptions.go (topic subscription + handler shape)
// and invalidation/service.go (InvalidationEvent, publish call), adapted
// away from encore.dev/pubsub onto the generic transport.Transport
// interface — see DESIGN.md for why the Encore dependency was dropped.
package bus

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/o-tero/cachecoordinator/codec"
	"github.com/o-tero/cachecoordinator/logging"
	"github.com/o-tero/cachecoordinator/metrics"
	"github.com/o-tero/cachecoordinator/transport"
)

// Channel names, per spec §4.7.
const (
	ChannelInvalidate     = "cache:invalidate"
	ChannelInvalidateTags = "cache:invalidate-tags"
	ChannelClear          = "cache:clear"
)

// InvalidateEvent is published on ChannelInvalidate.
type InvalidateEvent struct {
	Keys   []string `json:"keys" msgpack:"keys"`
	Source string   `json:"source" msgpack:"source"`
}

// InvalidateTagsEvent is published on ChannelInvalidateTags.
type InvalidateTagsEvent struct {
	Tags   []string `json:"tags" msgpack:"tags"`
	Source string   `json:"source" msgpack:"source"`
}

// ClearEvent is published on ChannelClear.
type ClearEvent struct {
	Source string `json:"source" msgpack:"source"`
}

// Target is the local apply surface the coordinator exposes to the bus,
// so this package never imports the coordinator package directly.
// Applying is always local-only (L1 + tag index), never re-published —
// that is what keeps the system loop-free by construction.
type Target interface {
	ApplyInvalidateKeys(keys []string)
	ApplyInvalidateTags(tags []string)
	ApplyClear()
}

// Adapter wires a Transport to a Target. Self-origin filtering is not
// required by the spec (apply is idempotent by construction); the
// Source field is attached purely for observability, per SPEC_FULL's
// Open Question #1 decision.
type Adapter struct {
	transport  transport.Transport
	codec      codec.Codec
	target     Target
	instanceID string
	log        logging.Logger
	metrics    *metrics.Metrics
}

// New builds a bus adapter. codec may be nil, defaulting to JSON.
func New(t transport.Transport, c codec.Codec, target Target, log logging.Logger, m *metrics.Metrics) *Adapter {
	if c == nil {
		c = codec.NewJSON()
	}
	if log.IsZero() {
		log = logging.Nop()
	}
	return &Adapter{
		transport:  t,
		codec:      c,
		target:     target,
		instanceID: uuid.NewString(),
		log:        log,
		metrics:    m,
	}
}

// Connect connects the underlying transport and subscribes to all three
// invalidation channels.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.transport.Connect(ctx); err != nil {
		return fmt.Errorf("bus: connect: %w", err)
	}
	if err := a.transport.Subscribe(ctx, ChannelInvalidate, a.handleInvalidate); err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", ChannelInvalidate, err)
	}
	if err := a.transport.Subscribe(ctx, ChannelInvalidateTags, a.handleInvalidateTags); err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", ChannelInvalidateTags, err)
	}
	if err := a.transport.Subscribe(ctx, ChannelClear, a.handleClear); err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", ChannelClear, err)
	}
	return nil
}

// Disconnect unsubscribes from every channel and disconnects the
// underlying transport.
func (a *Adapter) Disconnect(ctx context.Context) error {
	_ = a.transport.Unsubscribe(ctx, ChannelInvalidate)
	_ = a.transport.Unsubscribe(ctx, ChannelInvalidateTags)
	_ = a.transport.Unsubscribe(ctx, ChannelClear)
	if err := a.transport.Disconnect(ctx); err != nil {
		return fmt.Errorf("bus: disconnect: %w", err)
	}
	return nil
}

// PublishInvalidate is best-effort: publish errors are swallowed here
// (the retry middleware, if configured, owns reliable delivery).
func (a *Adapter) PublishInvalidate(ctx context.Context, keys []string) {
	a.publish(ctx, ChannelInvalidate, InvalidateEvent{Keys: keys, Source: a.instanceID})
}

// PublishInvalidateTags is best-effort, as PublishInvalidate.
func (a *Adapter) PublishInvalidateTags(ctx context.Context, tags []string) {
	a.publish(ctx, ChannelInvalidateTags, InvalidateTagsEvent{Tags: tags, Source: a.instanceID})
}

// PublishClear is best-effort, as PublishInvalidate.
func (a *Adapter) PublishClear(ctx context.Context) {
	a.publish(ctx, ChannelClear, ClearEvent{Source: a.instanceID})
}

func (a *Adapter) publish(ctx context.Context, channel string, event any) {
	data, err := a.codec.Encode(event)
	if err != nil {
		a.log.Error("bus: failed to encode event, dropping publish", err, map[string]any{"channel": channel})
		return
	}
	if err := a.transport.Publish(ctx, channel, data); err != nil {
		a.log.Warn("bus: publish failed (best-effort)", map[string]any{"channel": channel, "error": err.Error()})
		return
	}
	if a.metrics != nil {
		a.metrics.BusPublishes.Inc()
	}
}

func (a *Adapter) handleInvalidate(ctx context.Context, channel string, payload []byte) {
	var event InvalidateEvent
	if err := a.codec.Decode(payload, &event); err != nil {
		a.recordApplyError(channel, err)
		return
	}
	a.target.ApplyInvalidateKeys(event.Keys)
}

func (a *Adapter) handleInvalidateTags(ctx context.Context, channel string, payload []byte) {
	var event InvalidateTagsEvent
	if err := a.codec.Decode(payload, &event); err != nil {
		a.recordApplyError(channel, err)
		return
	}
	a.target.ApplyInvalidateTags(event.Tags)
}

func (a *Adapter) handleClear(ctx context.Context, channel string, payload []byte) {
	var event ClearEvent
	if err := a.codec.Decode(payload, &event); err != nil {
		a.recordApplyError(channel, err)
		return
	}
	a.target.ApplyClear()
}

func (a *Adapter) recordApplyError(channel string, err error) {
	a.log.Error("bus: failed to decode inbound event", err, map[string]any{"channel": channel})
	if a.metrics != nil {
		a.metrics.BusApplyErrors.Inc()
	}
}
