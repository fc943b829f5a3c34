// Package codec is the serialization boundary of cartcache: the store keeps
// opaque byte payloads, and a Codec[V] fixes how caller values cross that
// boundary.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
