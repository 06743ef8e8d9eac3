package coordinator

import "context"

// Namespaced is a thin view over a Coordinator that prefixes every key
// with a fixed namespace, per spec §4.5's namespace(prefix) -> view
// operation. It shares the underlying L1/L2/tag index/bus with its
// parent: namespacing is a key-naming convenience, not a second cache.
type Namespaced[V any] struct {
	c      *Coordinator[V]
	prefix string
}

// Namespace returns a view of c whose keys are all prefixed with
// prefix + c's configured key separator.
func (c *Coordinator[V]) Namespace(prefix string) *Namespaced[V] {
	return &Namespaced[V]{c: c, prefix: prefix + c.cfg.KeySeparator}
}

func (n *Namespaced[V]) key(key string) string { return n.prefix + key }

// Namespace returns a further-nested view, so namespaces compose.
func (n *Namespaced[V]) Namespace(prefix string) *Namespaced[V] {
	return &Namespaced[V]{c: n.c, prefix: n.key(prefix) + n.c.cfg.KeySeparator}
}

func (n *Namespaced[V]) Get(ctx context.Context, key string, opts GetOptions) (V, bool) {
	return n.c.Get(ctx, n.key(key), opts)
}

func (n *Namespaced[V]) Set(ctx context.Context, key string, value V, opts SetOptions) error {
	return n.c.Set(ctx, n.key(key), value, opts)
}

func (n *Namespaced[V]) GetOrSet(ctx context.Context, key string, loader Loader[V], opts GetOrSetOptions[V]) (V, error) {
	return n.c.GetOrSet(ctx, n.key(key), loader, opts)
}

func (n *Namespaced[V]) Delete(ctx context.Context, keys ...string) int {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = n.key(k)
	}
	return n.c.Delete(ctx, prefixed...)
}

func (n *Namespaced[V]) Has(ctx context.Context, key string) bool {
	return n.c.Has(ctx, n.key(key))
}

func (n *Namespaced[V]) Pull(ctx context.Context, key string) (V, bool) {
	return n.c.Pull(ctx, n.key(key))
}

func (n *Namespaced[V]) Expire(ctx context.Context, key string) bool {
	return n.c.Expire(ctx, n.key(key))
}

// InvalidateTags and Clear are intentionally NOT scoped by prefix: tags
// and a full clear are coordinator-wide concepts that a key-prefix view
// cannot subset without its own private tag index, which would defeat
// sharing the parent's. Callers needing namespace-scoped invalidation
// should tag their entries with a namespace tag and invalidate that tag.
func (n *Namespaced[V]) InvalidateTags(ctx context.Context, tags ...string) int {
	return n.c.InvalidateTags(ctx, tags...)
}
