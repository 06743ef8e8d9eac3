package coordinator

import (
	"time"

	"github.com/o-tero/cachecoordinator/duration"
)

// GetOptions configures Get. The zero value is the default: no clone.
type GetOptions struct {
	// Clone requests a structural copy of the returned value rather than
	// the stored value itself.
	Clone bool
}

// SetOptions configures Set and the write side of GetOrSet. StaleTime
// and GCTime accept any duration.Literal (time.Duration, ms number, or
// human string like "30s"); nil means "use the coordinator default."
type SetOptions struct {
	StaleTime duration.Literal
	GCTime    duration.Literal
	Tags      []string
}

// GetOrSetOptions configures getOrSet, per spec §4.6.
type GetOrSetOptions[V any] struct {
	SetOptions

	// Timeout bounds how long getOrSet waits for a fresh load before
	// falling back to a stale/provided value. Nil means wait indefinitely.
	Timeout *time.Duration

	// Retries is how many additional attempts the loader gets after its
	// first failure, before the error propagates.
	Retries int

	// Fresh forces a miss-style load even if L1/L2 holds a fresh entry.
	Fresh bool

	// AbortOnTimeout cancels the loader's context when Timeout elapses;
	// otherwise the loader keeps running in the background after the
	// timeout releases the caller.
	AbortOnTimeout bool

	// EagerRefresh, in [0,1], triggers a background refresh once the
	// elapsed fraction of the fresh window crosses this ratio, while
	// still returning the current fresh value immediately. Nil disables
	// eager refresh.
	EagerRefresh *float64

	// StaleValue is returned on a miss/fresh=true timeout when no cached
	// value exists to fall back to. If nil, getOrSet waits for the
	// loader to resolve regardless of Timeout.
	StaleValue *V
}
