// Package memory implements the L1 driver contract as a thread-safe,
// in-process map with LRU eviction, grounded on the teacher's
// cache-manager/cache.go L1Cache: an RWMutex-guarded map plus a
// container/list for O(1) LRU bookkeeping. GC (gcAt) is checked lazily
// on Get/Has; a gc'd entry is always treated as absent regardless of
// whether it has physically been evicted yet.
package memory

import (
	"container/list"
	"sync"
	"time"

	"github.com/o-tero/cachecoordinator/entry"
)

type node[V any] struct {
	key     string
	entry   entry.Entry[V]
	element *list.Element
}

// Driver is an L1 driver.Sync[V] implementation with bounded capacity
// and least-recently-used eviction once that capacity is reached.
type Driver[V any] struct {
	mu         sync.RWMutex
	items      map[string]*node[V]
	lru        *list.List
	maxEntries int
	now        func() time.Time
}

// New creates an L1 driver. maxEntries <= 0 means unbounded.
func New[V any](maxEntries int) *Driver[V] {
	return &Driver[V]{
		items:      make(map[string]*node[V], maxEntries),
		lru:        list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns (entry, true) if present and not gc'd, moving it to the
// front of the LRU list. A gc'd entry is evicted on access and reported
// as absent. Complexity: O(1) average.
func (d *Driver[V]) Get(key string) (entry.Entry[V], bool) {
	d.mu.RLock()
	n, ok := d.items[key]
	d.mu.RUnlock()
	if !ok {
		var zero entry.Entry[V]
		return zero, false
	}

	if n.entry.IsGCd(d.now()) {
		d.mu.Lock()
		d.deleteLocked(key)
		d.mu.Unlock()
		var zero entry.Entry[V]
		return zero, false
	}

	d.mu.Lock()
	d.lru.MoveToFront(n.element)
	d.mu.Unlock()

	return n.entry, true
}

// GetMany looks up multiple keys; missing/gc'd keys are simply absent
// from the result map.
func (d *Driver[V]) GetMany(keys []string) map[string]entry.Entry[V] {
	out := make(map[string]entry.Entry[V], len(keys))
	for _, k := range keys {
		if e, ok := d.Get(k); ok {
			out[k] = e
		}
	}
	return out
}

// Set overwrites (or creates) the entry for key, evicting the
// least-recently-used entry first if at capacity. Complexity: O(1).
func (d *Driver[V]) Set(key string, e entry.Entry[V]) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n, exists := d.items[key]; exists {
		n.entry = e
		d.lru.MoveToFront(n.element)
		return
	}

	if d.maxEntries > 0 && d.lru.Len() >= d.maxEntries {
		d.evictOldestLocked()
	}

	n := &node[V]{key: key, entry: e}
	n.element = d.lru.PushFront(n)
	d.items[key] = n
}

// Delete removes key, reporting whether it existed.
func (d *Driver[V]) Delete(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deleteLocked(key)
}

// DeleteMany deletes every key in keys, returning the count that existed.
func (d *Driver[V]) DeleteMany(keys []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, k := range keys {
		if d.deleteLocked(k) {
			count++
		}
	}
	return count
}

// Has reports whether key is present and not gc'd, without disturbing
// LRU ordering.
func (d *Driver[V]) Has(key string) bool {
	d.mu.RLock()
	n, ok := d.items[key]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	if n.entry.IsGCd(d.now()) {
		d.mu.Lock()
		d.deleteLocked(key)
		d.mu.Unlock()
		return false
	}
	return true
}

// Clear empties the driver.
func (d *Driver[V]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = make(map[string]*node[V], d.maxEntries)
	d.lru = list.New()
}

// Size returns the current entry count, including any not-yet-swept
// gc'd entries.
func (d *Driver[V]) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// CleanupExpired removes every gc'd entry and returns how many were
// removed. Callers may run this on a ticker; correctness never depends
// on it running.
func (d *Driver[V]) CleanupExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var expired []string
	for key, n := range d.items {
		if n.entry.IsGCd(now) {
			expired = append(expired, key)
		}
	}
	count := 0
	for _, key := range expired {
		if d.deleteLocked(key) {
			count++
		}
	}
	return count
}

func (d *Driver[V]) deleteLocked(key string) bool {
	n, exists := d.items[key]
	if !exists {
		return false
	}
	d.lru.Remove(n.element)
	delete(d.items, key)
	return true
}

func (d *Driver[V]) evictOldestLocked() {
	oldest := d.lru.Back()
	if oldest == nil {
		return
	}
	n := oldest.Value.(*node[V])
	d.lru.Remove(oldest)
	delete(d.items, n.key)
}
