// Package singleflight deduplicates concurrent loads for the same key,
// per spec §4.3. The API shape (Do/Forget/InFlight) is grounded on the
// teacher's cache-manager/singleflight.go RequestCoalescer, but the
// implementation delegates to golang.org/x/sync/singleflight.Group —
// already imported elsewhere in the teacher's module tree
// (warming/service.go) for exactly this coalescing role — rather than
// re-deriving the same wg/map bookkeeping by hand.
package singleflight

import (
	"sync/atomic"

	xsync "golang.org/x/sync/singleflight"
)

// Registry deduplicates concurrent Do calls sharing the same key: only
// one loader runs at a time per key, and every concurrent caller
// observes the same success or failure.
type Registry struct {
	group    xsync.Group
	inFlight atomic.Int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Do runs fn, or joins an already-running call for the same key. A
// panicking fn is recovered here (rather than left to the underlying
// group, which only re-panics to the first caller) so every awaiter
// observes a LoaderError instead of some callers seeing a crash. shared
// reports whether this call joined another caller's in-flight fn rather
// than starting its own.
func (r *Registry) Do(key string, fn func() (any, error)) (v any, err error, shared bool) {
	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	leader := false
	v, err, _ = r.group.Do(key, func() (result any, err error) {
		leader = true
		defer func() {
			if p := recover(); p != nil {
				err = panicError{p}
			}
		}()
		return fn()
	})
	return v, err, !leader
}

// Forget removes key from the registry, letting a new call for that key
// start a fresh loader instead of joining a stale one.
func (r *Registry) Forget(key string) {
	r.group.Forget(key)
}

// InFlight returns the approximate number of in-flight Do calls across
// all keys (including duplicates that have joined).
func (r *Registry) InFlight() int {
	return int(r.inFlight.Load())
}

type panicError struct{ value any }

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return "singleflight: loader panicked: " + err.Error()
	}
	return "singleflight: loader panicked"
}
