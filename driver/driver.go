// Package driver defines the synchronous (L1) and asynchronous (L2)
// key-entry store contracts the coordinator is built against. Concrete
// implementations live under drivers/; this package only names the
// capability interfaces, per spec §4.1 and the design note to model
// drivers as small interfaces composed by the coordinator rather than
// by inheritance.
package driver

import (
	"context"

	"github.com/o-tero/cachecoordinator/entry"
)

// Sync is the L1 driver contract: synchronous, non-suspending.
type Sync[V any] interface {
	Get(key string) (entry.Entry[V], bool)
	GetMany(keys []string) map[string]entry.Entry[V]
	Set(key string, e entry.Entry[V])
	Delete(key string) bool
	DeleteMany(keys []string) int
	Has(key string) bool
	Clear()
}

// Async is the L2 driver contract: every operation suspends on I/O and
// MUST return an error on genuine I/O failure so the circuit breaker can
// record it. Absence (key not found) MUST NOT be reported as an error.
type Async[V any] interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Get(ctx context.Context, key string) (entry.Entry[V], bool, error)
	GetMany(ctx context.Context, keys []string) (map[string]entry.Entry[V], error)
	Set(ctx context.Context, key string, e entry.Entry[V]) error
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys []string) (int, error)
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
}
