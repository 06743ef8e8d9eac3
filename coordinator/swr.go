// The stale-while-revalidate orchestrator (C7): getOrSet races a
// singleflight-coalesced loader against an optional timeout, returning a
// stale or caller-provided fallback value when the loader doesn't win
// the race, and letting the loader finish and backfill the cache in the
// background unless AbortOnTimeout cancels it. Grounded on the teacher's warming/service.go
// refresh-ahead scheduling and cache-manager/service.go's GetOrLoad, the
// two places the teacher's own code already raced a loader against a
// deadline.
package coordinator

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/o-tero/cachecoordinator/cacheerr"
	"github.com/o-tero/cachecoordinator/metrics"
	"github.com/o-tero/cachecoordinator/retryqueue"
)

// defaultRetryBase is the backoff base used between getOrSet loader
// retries; GetOrSetOptions has no knob for it because retries here are
// about absorbing transient loader flakiness, not tuning delivery.
const defaultRetryBase = 20 * time.Millisecond

// Loader resolves the fresh value for key on a cache miss or revalidation.
type Loader[V any] func(ctx context.Context) (V, error)

// GetOrSet implements §4.6: return fresh immediately (optionally kicking
// off an eager background refresh), return stale immediately and
// revalidate in the background (optionally racing a timeout first),
// or block for a fresh load on a miss (optionally racing a timeout and
// falling back to a provided stale value).
func (c *Coordinator[V]) GetOrSet(ctx context.Context, key string, loader Loader[V], opts GetOrSetOptions[V]) (V, error) {
	now := time.Now()
	var zero V

	if !opts.Fresh {
		if e, ok := c.lookup(ctx, key); ok {
			if e.IsFresh(now) {
				if opts.EagerRefresh != nil && e.EagerThresholdCrossed(now, *opts.EagerRefresh) {
					c.spawnRefresh(key, loader, opts)
				}
				return e.Value, nil
			}

			// Stale: always return what we have; the only question is
			// whether we wait a bounded amount of time for a fresher
			// value first.
			if opts.Timeout == nil {
				c.spawnRefresh(key, loader, opts)
				return e.Value, nil
			}
			if v, err, won := c.raceRefresh(ctx, key, loader, opts, *opts.Timeout); won && err == nil {
				return v, nil
			}
			return e.Value, nil
		}
	}

	// Miss, or Fresh forced a miss-style load.
	if opts.Timeout == nil {
		return c.loadAndStore(ctx, key, loader, opts)
	}

	if v, err, won := c.raceRefresh(ctx, key, loader, opts, *opts.Timeout); won {
		return v, err
	}
	if opts.StaleValue != nil {
		return *opts.StaleValue, nil
	}
	// No fallback value: the timeout only bounded the *first* wait, the
	// loader itself must still resolve. Join the already-running attempt
	// with no further deadline.
	return c.loadAndStore(ctx, key, loader, opts)
}

// raceRefresh runs the loader (coalesced via singleflight) against
// timeout. won is true iff the loader produced a result before timeout
// elapsed; if AbortOnTimeout is set and the timeout wins, the loader's
// context is canceled, otherwise it is left to finish (and backfill the
// cache) on its own.
func (c *Coordinator[V]) raceRefresh(ctx context.Context, key string, loader Loader[V], opts GetOrSetOptions[V], timeout time.Duration) (v V, err error, won bool) {
	loadCtx, cancel := context.WithCancel(ctx)

	type outcome struct {
		v   V
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := c.loadAndStore(loadCtx, key, loader, opts)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		cancel()
		return o.v, o.err, true
	case <-time.After(timeout):
		if opts.AbortOnTimeout {
			cancel()
		} else {
			// Let it run to completion in the background; release the
			// cancel func's resources once it does.
			go func() { <-done; cancel() }()
		}
		var zero V
		return zero, nil, false
	}
}

// spawnRefresh fires a detached, best-effort background refresh: its
// result is stored on success and otherwise simply discarded, since
// nothing is waiting on it.
func (c *Coordinator[V]) spawnRefresh(key string, loader Loader[V], opts GetOrSetOptions[V]) {
	go func() {
		_, _ = c.loadAndStore(context.Background(), key, loader, opts)
	}()
}

// loadAndStore runs loader through the singleflight registry (so
// concurrent callers for the same key share one execution), retries on
// failure per opts.Retries, and writes a successful result back via Set.
func (c *Coordinator[V]) loadAndStore(ctx context.Context, key string, loader Loader[V], opts GetOrSetOptions[V]) (V, error) {
	var zero V

	result, err, shared := c.sf.Do(key, func() (any, error) {
		return c.retryLoader(ctx, loader, opts.Retries)
	})
	if shared {
		c.bump(func(m *metrics.Metrics) prometheus.Counter { return m.SingleFlightJoins })
	}
	if err != nil {
		return zero, cacheerr.NewLoaderError(key, err)
	}

	v, _ := result.(V)
	if setErr := c.Set(ctx, key, v, opts.SetOptions); setErr != nil {
		return zero, setErr
	}
	return v, nil
}

// retryLoader calls loader, retrying up to retries additional times on
// failure with exponential backoff, per spec step 3 of getOrSet.
func (c *Coordinator[V]) retryLoader(ctx context.Context, loader Loader[V], retries int) (V, error) {
	var zero V
	var lastErr error
	var backoff retryqueue.Strategy = retryqueue.Exponential{}

	for attempt := 1; attempt <= retries+1; attempt++ {
		v, err := loader(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt <= retries {
			select {
			case <-time.After(backoff.Delay(attempt, defaultRetryBase)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}
