// Package redis implements the L2 driver contract against a real remote
// store using redis/go-redis/v9, exercising the RemoteCache shape the
// teacher names in cache-manager/service.go (Get/Set/Delete/DeletePattern)
// against a genuine client rather than a mock. Entries are serialized
// through a codec.Codec (JSON by default) so the wire format matches
// whatever the bus/transport side negotiates.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/o-tero/cachecoordinator/cacheerr"
	"github.com/o-tero/cachecoordinator/codec"
	"github.com/o-tero/cachecoordinator/entry"
)

// Driver is a driver.Async[V] implementation backed by a redis client.
type Driver[V any] struct {
	client *goredis.Client
	codec  codec.Codec
	prefix string
}

// New wraps an existing *redis.Client. Keys are namespaced with prefix
// (e.g. "cache:") so the driver can share a Redis instance safely.
func New[V any](client *goredis.Client, prefix string, c codec.Codec) *Driver[V] {
	if c == nil {
		c = codec.NewJSON()
	}
	return &Driver[V]{client: client, codec: c, prefix: prefix}
}

func (d *Driver[V]) wireKey(key string) string { return d.prefix + key }

// Connect pings the server to verify connectivity.
func (d *Driver[V]) Connect(ctx context.Context) error {
	if err := d.client.Ping(ctx).Err(); err != nil {
		return cacheerr.NewDriverError("l2", "connect", "", fmt.Errorf("redis ping: %w", err))
	}
	return nil
}

// Disconnect closes the underlying client connection pool.
func (d *Driver[V]) Disconnect(ctx context.Context) error {
	if err := d.client.Close(); err != nil {
		return cacheerr.NewDriverError("l2", "disconnect", "", err)
	}
	return nil
}

// Get fetches and decodes key. A missing key is (zero, false, nil); any
// other Redis failure is a DriverError so the circuit breaker records it.
func (d *Driver[V]) Get(ctx context.Context, key string) (entry.Entry[V], bool, error) {
	var zero entry.Entry[V]
	data, err := d.client.Get(ctx, d.wireKey(key)).Bytes()
	if err == goredis.Nil {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, cacheerr.NewDriverError("l2", "get", key, err)
	}
	var e entry.Entry[V]
	if err := d.codec.Decode(data, &e); err != nil {
		return zero, false, cacheerr.NewDriverError("l2", "get", key, err)
	}
	return e, true, nil
}

// GetMany uses MGET for a single round trip.
func (d *Driver[V]) GetMany(ctx context.Context, keys []string) (map[string]entry.Entry[V], error) {
	if len(keys) == 0 {
		return map[string]entry.Entry[V]{}, nil
	}
	wireKeys := make([]string, len(keys))
	for i, k := range keys {
		wireKeys[i] = d.wireKey(k)
	}
	vals, err := d.client.MGet(ctx, wireKeys...).Result()
	if err != nil {
		return nil, cacheerr.NewDriverError("l2", "getMany", "", err)
	}
	out := make(map[string]entry.Entry[V], len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e entry.Entry[V]
		if err := d.codec.Decode([]byte(s), &e); err != nil {
			continue
		}
		out[keys[i]] = e
	}
	return out, nil
}

// Set writes key with a TTL equal to the entry's CreatedAt-to-GCAt span,
// counted from the time of the write, so Redis physically expires the key
// no earlier than GCAt (a zero span sets no TTL). The coordinator still
// treats gcAt as authoritative and ignores gc'd L2 entries; the TTL is a
// memory-safety backstop, not a correctness dependency.
func (d *Driver[V]) Set(ctx context.Context, key string, e entry.Entry[V]) error {
	data, err := d.codec.Encode(e)
	if err != nil {
		return cacheerr.NewDriverError("l2", "set", key, err)
	}
	ttl := e.GCAt.Sub(e.CreatedAt)
	if err := d.client.Set(ctx, d.wireKey(key), data, ttl).Err(); err != nil {
		return cacheerr.NewDriverError("l2", "set", key, err)
	}
	return nil
}

// Delete removes key, reporting whether it existed.
func (d *Driver[V]) Delete(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Del(ctx, d.wireKey(key)).Result()
	if err != nil {
		return false, cacheerr.NewDriverError("l2", "delete", key, err)
	}
	return n > 0, nil
}

// DeleteMany removes every key in keys in one round trip.
func (d *Driver[V]) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	wireKeys := make([]string, len(keys))
	for i, k := range keys {
		wireKeys[i] = d.wireKey(k)
	}
	n, err := d.client.Del(ctx, wireKeys...).Result()
	if err != nil {
		return 0, cacheerr.NewDriverError("l2", "deleteMany", "", err)
	}
	return int(n), nil
}

// Has reports key existence without fetching its value.
func (d *Driver[V]) Has(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, d.wireKey(key)).Result()
	if err != nil {
		return false, cacheerr.NewDriverError("l2", "has", key, err)
	}
	return n > 0, nil
}

// Clear deletes every key under this driver's prefix. It uses SCAN
// rather than KEYS to avoid blocking the server on large keyspaces.
func (d *Driver[V]) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := d.prefix + "*"
	for {
		keys, next, err := d.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return cacheerr.NewDriverError("l2", "clear", "", err)
		}
		if len(keys) > 0 {
			if err := d.client.Del(ctx, keys...).Err(); err != nil {
				return cacheerr.NewDriverError("l2", "clear", "", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}
