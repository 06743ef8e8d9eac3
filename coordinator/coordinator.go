// Package coordinator implements the cache coordinator (C6) and its SWR
// orchestrator (C7): get/set/getOrSet/delete/has/clear/invalidateTags
// across L1+L2+bus. It is grounded on the teacher's
// cache-manager/service.go Service.Get/Set/Invalidate control flow
// (L1 check -> coalesce -> L2 -> origin), generalized with staleness
// tiers, a circuit breaker, a tag index, and bus-based distributed
// invalidation that the teacher's single-service design didn't need.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/o-tero/cachecoordinator/breaker"
	"github.com/o-tero/cachecoordinator/bus"
	"github.com/o-tero/cachecoordinator/cacheerr"
	"github.com/o-tero/cachecoordinator/codec"
	"github.com/o-tero/cachecoordinator/driver"
	"github.com/o-tero/cachecoordinator/duration"
	"github.com/o-tero/cachecoordinator/entry"
	"github.com/o-tero/cachecoordinator/logging"
	"github.com/o-tero/cachecoordinator/metrics"
	"github.com/o-tero/cachecoordinator/singleflight"
	"github.com/o-tero/cachecoordinator/tagindex"
)

// Config holds coordinator-wide defaults.
type Config struct {
	// DefaultStaleTime is used when Set/GetOrSet options omit StaleTime.
	DefaultStaleTime time.Duration
	// DefaultGCTime is used when options omit GCTime; if zero, it equals
	// whatever staleTime resolves to for that call.
	DefaultGCTime time.Duration
	// KeySeparator joins a namespace prefix to a key; defaults to ":".
	KeySeparator string
}

// Params are the dependencies wired into a Coordinator at construction.
// Only L1 is required; everything else degrades gracefully when absent
// (no L2 means an L2-less cache, no Bus means a single-instance cache).
type Params[V any] struct {
	Config

	L1      driver.Sync[V]
	L2      driver.Async[V]
	Breaker *breaker.Breaker
	Bus     *bus.Adapter
	Codec   codec.Codec
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// Coordinator is the two-tier cache coordinator: §4.5's public contract
// plus §4.6's SWR orchestrator.
type Coordinator[V any] struct {
	cfg     Config
	l1      driver.Sync[V]
	l2      driver.Async[V]
	cb      *breaker.Breaker
	busA    *bus.Adapter
	codec   codec.Codec
	sf      *singleflight.Registry
	tags    *tagindex.Index
	metrics *metrics.Metrics
	log     logging.Logger
}

// New builds a Coordinator from p. p.L1 must not be nil.
func New[V any](p Params[V]) *Coordinator[V] {
	if p.KeySeparator == "" {
		p.KeySeparator = ":"
	}
	cb := p.Breaker
	if cb == nil {
		cb = breaker.New(5 * time.Second)
	}
	log := p.Logger
	if log.IsZero() {
		log = logging.Nop()
	}
	c := p.Codec
	if c == nil {
		c = codec.NewJSON()
	}

	return &Coordinator[V]{
		cfg:     p.Config,
		l1:      p.L1,
		l2:      p.L2,
		cb:      cb,
		busA:    p.Bus,
		codec:   c,
		sf:      singleflight.New(),
		tags:    tagindex.New(),
		metrics: p.Metrics,
		log:     log.With("coordinator"),
	}
}

// Connect brings up every lifecycle-bearing dependency: the L2 driver
// (if present) and the bus adapter (if present), per spec §5's
// resource-scoping requirement that connect/disconnect are paired.
func (c *Coordinator[V]) Connect(ctx context.Context) error {
	if c.l2 != nil {
		if err := c.l2.Connect(ctx); err != nil {
			return cacheerr.NewDriverError("l2", "connect", "", err)
		}
	}
	if c.busA != nil {
		if err := c.busA.Connect(ctx); err != nil {
			return fmt.Errorf("coordinator: connect bus: %w", err)
		}
	}
	return nil
}

// Disconnect unsubscribes the bus and disconnects L2, guaranteeing
// release on all exit paths including a partial failure.
func (c *Coordinator[V]) Disconnect(ctx context.Context) error {
	var firstErr error
	if c.busA != nil {
		if err := c.busA.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.l2 != nil {
		if err := c.l2.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = cacheerr.NewDriverError("l2", "disconnect", "", err)
		}
	}
	return firstErr
}

// Get returns the value for key, escalating to L2 when L1 misses. Any L2
// failure records a circuit-breaker failure and is reported as a plain
// miss, never as an error, per spec §4.5.
func (c *Coordinator[V]) Get(ctx context.Context, key string, opts GetOptions) (V, bool) {
	e, ok := c.lookup(ctx, key)
	var zero V
	if !ok {
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.Misses })
		return zero, false
	}
	c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.Hits })
	if opts.Clone {
		return structuralClone(e.Value, c.codec), true
	}
	return e.Value, true
}

// lookup is Get's shared core: L1 first, then L2-through-the-breaker
// with backfill, used by both Get and getOrSet (which additionally
// needs the raw Entry's timestamps to apply SWR rules).
func (c *Coordinator[V]) lookup(ctx context.Context, key string) (entry.Entry[V], bool) {
	if e, ok := c.l1.Get(key); ok {
		return e, true
	}

	var zero entry.Entry[V]
	if c.l2 == nil || c.cb.IsOpen() {
		return zero, false
	}

	e, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.cb.RecordFailure()
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
		return zero, false
	}
	c.cb.RecordSuccess()
	if !ok || e.IsGCd(time.Now()) {
		return zero, false
	}

	// Backfill L1 and restore the tag index from the entry's own tags —
	// Open Question #2's resolution (tags travel inside CacheEntry).
	c.l1.Set(key, e)
	c.tags.AddTags(key, e.Tags)
	return e, true
}

// Set materializes an entry, writes L1 synchronously then L2
// best-effort, updates the tag index, and publishes a best-effort
// cache:invalidate event.
func (c *Coordinator[V]) Set(ctx context.Context, key string, value V, opts SetOptions) error {
	e, err := c.buildEntry(value, opts)
	if err != nil {
		return err
	}

	c.l1.Set(key, e)
	c.writeThroughL2(ctx, key, e)
	c.tags.AddTags(key, e.Tags)
	c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.Sets })

	if c.busA != nil {
		c.busA.PublishInvalidate(ctx, []string{key})
	}
	return nil
}

func (c *Coordinator[V]) buildEntry(value V, opts SetOptions) (entry.Entry[V], error) {
	staleTime := c.cfg.DefaultStaleTime
	if opts.StaleTime != nil {
		d, err := duration.Parse(opts.StaleTime)
		if err != nil {
			var zero entry.Entry[V]
			return zero, err
		}
		staleTime = d
	}

	gcTime := staleTime
	if c.cfg.DefaultGCTime > 0 {
		gcTime = c.cfg.DefaultGCTime
	}
	if opts.GCTime != nil {
		d, err := duration.Parse(opts.GCTime)
		if err != nil {
			var zero entry.Entry[V]
			return zero, err
		}
		gcTime = d
	}

	if staleTime > gcTime {
		var zero entry.Entry[V]
		return zero, cacheerr.NewConfigError("gcTime", fmt.Errorf("gcTime (%s) must be >= staleTime (%s)", gcTime, staleTime))
	}

	return entry.New(value, time.Now(), staleTime, gcTime, opts.Tags), nil
}

func (c *Coordinator[V]) writeThroughL2(ctx context.Context, key string, e entry.Entry[V]) {
	if c.l2 == nil {
		return
	}
	if err := c.l2.Set(ctx, key, e); err != nil {
		c.cb.RecordFailure()
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
		return
	}
	c.cb.RecordSuccess()
}

// Delete removes keys from L1 and L2 (best-effort), purges the tag
// index, and publishes a best-effort cache:invalidate event. It returns
// the count of keys that existed in either tier.
func (c *Coordinator[V]) Delete(ctx context.Context, keys ...string) int {
	count := c.removeKeys(ctx, keys, true)
	c.bumpBy(func(m *metrics.Metrics) prometheus.Counter { return m.Deletes }, count)
	if c.busA != nil {
		c.busA.PublishInvalidate(ctx, keys)
	}
	return count
}

func (c *Coordinator[V]) removeKeys(ctx context.Context, keys []string, touchL2 bool) int {
	count := 0
	for _, key := range keys {
		existed := c.l1.Delete(key)
		if touchL2 && c.l2 != nil {
			l2Existed, err := c.l2.Delete(ctx, key)
			if err != nil {
				c.cb.RecordFailure()
				c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
			} else {
				c.cb.RecordSuccess()
				existed = existed || l2Existed
			}
		}
		c.tags.RemoveKey(key)
		if existed {
			count++
		}
	}
	return count
}

// Has reports whether key is present and not gc'd, in L1 or (circuit
// closed) L2.
func (c *Coordinator[V]) Has(ctx context.Context, key string) bool {
	if c.l1.Has(key) {
		return true
	}
	if c.l2 == nil || c.cb.IsOpen() {
		return false
	}
	ok, err := c.l2.Has(ctx, key)
	if err != nil {
		c.cb.RecordFailure()
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
		return false
	}
	c.cb.RecordSuccess()
	return ok
}

// Clear empties L1 and L2 (best-effort), resets the tag index, and
// publishes a best-effort cache:clear event.
func (c *Coordinator[V]) Clear(ctx context.Context) {
	c.l1.Clear()
	if c.l2 != nil {
		if err := c.l2.Clear(ctx); err != nil {
			c.cb.RecordFailure()
			c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
		} else {
			c.cb.RecordSuccess()
		}
	}
	c.tags.Clear()
	if c.busA != nil {
		c.busA.PublishClear(ctx)
	}
}

// InvalidateTags deletes every key tagged with any of tags and publishes
// a best-effort cache:invalidate-tags event. Returns the count deleted.
func (c *Coordinator[V]) InvalidateTags(ctx context.Context, tags ...string) int {
	keys := c.tags.KeysForTags(tags)
	count := c.removeKeys(ctx, keys, true)
	c.bumpBy(func(m *metrics.Metrics) prometheus.Counter { return m.Deletes }, count)
	c.bumpBy(func(m *metrics.Metrics) prometheus.Counter { return m.TagInvalidations }, 1)
	if c.busA != nil {
		c.busA.PublishInvalidateTags(ctx, tags)
	}
	return count
}

// Pull is get-then-delete, atomic from the caller's perspective (no
// suspension point between the two on this instance).
func (c *Coordinator[V]) Pull(ctx context.Context, key string) (V, bool) {
	v, ok := c.Get(ctx, key, GetOptions{})
	if ok {
		c.Delete(ctx, key)
	}
	return v, ok
}

// Expire marks key's entry stale-now (StaleAt = now, GCAt unchanged).
// Returns whether the key existed.
func (c *Coordinator[V]) Expire(ctx context.Context, key string) bool {
	now := time.Now()
	if e, ok := c.l1.Get(key); ok {
		updated := e.WithStaleNow(now)
		c.l1.Set(key, updated)
		if c.l2 != nil {
			c.writeThroughL2(ctx, key, updated)
		}
		return true
	}

	if c.l2 == nil || c.cb.IsOpen() {
		return false
	}
	e, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.cb.RecordFailure()
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.L2Errors })
		return false
	}
	c.cb.RecordSuccess()
	if !ok {
		return false
	}
	updated := e.WithStaleNow(now)
	c.writeThroughL2(ctx, key, updated)
	return true
}

// ApplyInvalidateKeys implements bus.Target: a LOCAL-ONLY removal (L1 +
// tag index), never touching L2 and never re-publishing, per spec §4.7.
func (c *Coordinator[V]) ApplyInvalidateKeys(keys []string) {
	count := c.removeKeys(context.Background(), keys, false)
	c.bumpBy(func(m *metrics.Metrics) prometheus.Counter { return m.Deletes }, count)
}

// ApplyInvalidateTags implements bus.Target, local-only as above.
func (c *Coordinator[V]) ApplyInvalidateTags(tags []string) {
	keys := c.tags.KeysForTags(tags)
	count := c.removeKeys(context.Background(), keys, false)
	c.bumpBy(func(m *metrics.Metrics) prometheus.Counter { return m.Deletes }, count)
}

// ApplyClear implements bus.Target, local-only as above.
func (c *Coordinator[V]) ApplyClear() {
	c.l1.Clear()
	c.tags.Clear()
}

// bump increments the counter selected from c.metrics, a no-op if no
// metrics were wired at construction.
func (c *Coordinator[V]) bump(pick func(*metrics.Metrics) prometheus.Counter) {
	if c.metrics == nil {
		return
	}
	pick(c.metrics).Inc()
}

// bumpBy adds n to the counter selected from c.metrics.
func (c *Coordinator[V]) bumpBy(pick func(*metrics.Metrics) prometheus.Counter, n int) {
	if c.metrics == nil || n <= 0 {
		return
	}
	pick(c.metrics).Add(float64(n))
}
