package coordinator

import "github.com/o-tero/cachecoordinator/codec"

// structuralClone returns a structural copy of v via an encode/decode
// round trip through c; Get uses it for every GetOptions.Clone request.
// A round-trip failure (V not representable in
// the codec's wire format) returns v itself: cloning is a best-effort
// convenience, not a correctness requirement, and the stored value is
// never mutated by callers in the first place.
func structuralClone[V any](v V, c codec.Codec) V {
	data, err := c.Encode(v)
	if err != nil {
		return v
	}
	var out V
	if err := c.Decode(data, &out); err != nil {
		return v
	}
	return out
}
