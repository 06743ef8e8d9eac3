// Package tagindex maps tag -> set of keys at the coordinator level (not
// persisted to drivers), per spec §4.4. The wildcard matching idea is
// adapted from the teacher's pkg/utils/pattern.go / invalidation/patterns.go
// (there used for pattern-based key invalidation); here it is repurposed
// for exact tag membership, which is all the spec's tag model requires.
package tagindex

import "sync"

// Index is a coordinator-owned tag -> keyset mapping. All operations are
// serialized with a mutex, matching the requirement that they be atomic
// with respect to the coordinator's single logical step.
type Index struct {
	mu       sync.Mutex
	tagKeys  map[string]map[string]struct{}
	keyTags  map[string]map[string]struct{}
}

// New creates an empty tag index.
func New() *Index {
	return &Index{
		tagKeys: make(map[string]map[string]struct{}),
		keyTags: make(map[string]map[string]struct{}),
	}
}

// AddTags associates key with every tag in tags, replacing whatever
// tags key previously had (entries are immutable; a re-Set replaces).
func (idx *Index) AddTags(key string, tags []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeKeyLocked(key)
	if len(tags) == 0 {
		return
	}

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		tagSet[t] = struct{}{}
		keys, ok := idx.tagKeys[t]
		if !ok {
			keys = make(map[string]struct{})
			idx.tagKeys[t] = keys
		}
		keys[key] = struct{}{}
	}
	idx.keyTags[key] = tagSet
}

// RemoveKey removes key from every tag it belongs to, pruning any tag
// left with no keys.
func (idx *Index) RemoveKey(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeKeyLocked(key)
}

func (idx *Index) removeKeyLocked(key string) {
	tags, ok := idx.keyTags[key]
	if !ok {
		return
	}
	for t := range tags {
		keys := idx.tagKeys[t]
		delete(keys, key)
		if len(keys) == 0 {
			delete(idx.tagKeys, t)
		}
	}
	delete(idx.keyTags, key)
}

// KeysForTags returns the union of keys tagged with any of tags.
func (idx *Index) KeysForTags(tags []string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	union := make(map[string]struct{})
	for _, t := range tags {
		for k := range idx.tagKeys[t] {
			union[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(union))
	for k := range union {
		out = append(out, k)
	}
	return out
}

// Clear drops the entire index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tagKeys = make(map[string]map[string]struct{})
	idx.keyTags = make(map[string]map[string]struct{})
}

// TagsForKey returns the tags currently recorded for key, or nil if key
// has none. (An L2 backfill restores a key's tags through AddTags, from
// the tags carried inside the entry itself.)
func (idx *Index) TagsForKey(key string) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	tags, ok := idx.keyTags[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	return out
}
