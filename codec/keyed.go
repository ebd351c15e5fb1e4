package codec

import (
	"fmt"
	"strconv"
)

// Keyed adapts a codec for string-keyed objects (the shape of most JSON batch
// APIs: {"12": {...}, "13": {...}}) into a codec for id-keyed result maps.
// Keys must be base-10 integers.
type Keyed[V any] struct {
	Inner Codec[map[string]V]
}

// NewKeyedJSON is the common case: a JSON object keyed by decimal ids.
func NewKeyedJSON[V any]() Keyed[V] {
	return Keyed[V]{Inner: JSON[map[string]V]{}}
}

func (c Keyed[V]) Encode(m map[int64]V) ([]byte, error) {
	sm := make(map[string]V, len(m))
	for id, v := range m {
		sm[strconv.FormatInt(id, 10)] = v
	}
	return c.Inner.Encode(sm)
}

func (c Keyed[V]) Decode(b []byte) (map[int64]V, error) {
	sm, err := c.Inner.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]V, len(sm))
	for k, v := range sm {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: non-integer key %q: %w", k, err)
		}
		out[id] = v
	}
	return out, nil
}
