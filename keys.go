package cartcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keys builds namespaced, stable cache keys. Primitive inputs pass through
// verbatim; structured inputs are hashed over a canonical rendering so two
// logically equal values always produce the same key regardless of field
// insertion order. That stability is what makes cache-aside lookups built
// from query parameters hit.
type Keys struct {
	Namespace string
}

// Key returns "<ns>:<raw>" for primitives and "<ns>:<sha256>" for
// structured values.
func (k Keys) Key(raw any) string {
	switch v := raw.(type) {
	case string:
		return k.Namespace + ":" + v
	case fmt.Stringer:
		return k.Namespace + ":" + v.String()
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		return fmt.Sprintf("%s:%v", k.Namespace, v)
	default:
		return k.Namespace + ":" + Hash(raw)
	}
}

// Hash returns a hex sha256 over a canonical JSON rendering of v. The value
// is marshaled, decoded into a generic form, and re-marshaled: Go's JSON
// encoder emits map keys in sorted order, so the digest is independent of
// struct field order and map iteration order.
func Hash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// unhashable values still need a stable-ish key; fall back to the
		// type-tagged verbose rendering
		b = []byte(fmt.Sprintf("%#v", v))
	} else {
		var generic any
		if json.Unmarshal(b, &generic) == nil {
			if cb, err := json.Marshal(generic); err == nil {
				b = cb
			}
		}
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
