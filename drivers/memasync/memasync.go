// Package memasync implements an asynchronous L2 reference driver
// backed by an in-process map. It exists so the coordinator, the
// circuit breaker, and the SWR orchestrator can be exercised end to end
// without any external system — mirroring the teacher's RemoteCache
// interface in cache-manager/service.go, but implemented for real
// instead of left to an injected mock.
//
// InjectFailure lets tests simulate L2 outages (for circuit breaker and
// stale-fallback scenarios) without a real network dependency.
package memasync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/o-tero/cachecoordinator/entry"
)

// Driver is a driver.Async[V] implementation.
type Driver[V any] struct {
	mu        sync.RWMutex
	items     map[string]entry.Entry[V]
	connected bool
	failing   bool
	now       func() time.Time
}

// New creates a disconnected in-memory L2 driver.
func New[V any]() *Driver[V] {
	return &Driver[V]{
		items: make(map[string]entry.Entry[V]),
		now:   time.Now,
	}
}

// InjectFailure toggles whether every subsequent operation returns an
// error, simulating an L2 outage.
func (d *Driver[V]) InjectFailure(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = fail
}

func (d *Driver[V]) checkFailure() error {
	if d.failing {
		return errors.New("memasync: simulated L2 outage")
	}
	if !d.connected {
		return errors.New("memasync: not connected")
	}
	return nil
}

// Connect marks the driver ready for use.
func (d *Driver[V]) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

// Disconnect marks the driver unusable until Connect is called again.
func (d *Driver[V]) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

// Get returns (entry, true, nil) if present and not gc'd. A missing key
// is (zero, false, nil) — never an error.
func (d *Driver[V]) Get(ctx context.Context, key string) (entry.Entry[V], bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var zero entry.Entry[V]
	if err := d.checkFailure(); err != nil {
		return zero, false, err
	}
	e, ok := d.items[key]
	if !ok || e.IsGCd(d.now()) {
		return zero, false, nil
	}
	return e, true, nil
}

// GetMany looks up multiple keys in one round trip.
func (d *Driver[V]) GetMany(ctx context.Context, keys []string) (map[string]entry.Entry[V], error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkFailure(); err != nil {
		return nil, err
	}
	now := d.now()
	out := make(map[string]entry.Entry[V], len(keys))
	for _, k := range keys {
		if e, ok := d.items[k]; ok && !e.IsGCd(now) {
			out[k] = e
		}
	}
	return out, nil
}

// Set overwrites the entry for key.
func (d *Driver[V]) Set(ctx context.Context, key string, e entry.Entry[V]) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkFailure(); err != nil {
		return err
	}
	d.items[key] = e
	return nil
}

// Delete removes key, reporting whether it existed.
func (d *Driver[V]) Delete(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkFailure(); err != nil {
		return false, err
	}
	_, existed := d.items[key]
	delete(d.items, key)
	return existed, nil
}

// DeleteMany removes every key in keys, returning the count that existed.
func (d *Driver[V]) DeleteMany(ctx context.Context, keys []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkFailure(); err != nil {
		return 0, err
	}
	count := 0
	for _, k := range keys {
		if _, ok := d.items[k]; ok {
			count++
			delete(d.items, k)
		}
	}
	return count, nil
}

// Has reports whether key is present and not gc'd.
func (d *Driver[V]) Has(ctx context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkFailure(); err != nil {
		return false, err
	}
	e, ok := d.items[key]
	return ok && !e.IsGCd(d.now()), nil
}

// Clear empties the driver.
func (d *Driver[V]) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkFailure(); err != nil {
		return err
	}
	d.items = make(map[string]entry.Entry[V])
	return nil
}
