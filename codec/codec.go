// Package codec converts resolver values to and from bytes.
//
// Codecs are used at the resolver boundary: resolver/redis and resolver/http
// decode upstream payloads with them, and resolver.Cached stores encoded
// values in a provider.Provider.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
