package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto messages. ctor must return a fresh, empty message
// (e.g. func() *pb.Item { return &pb.Item{} }).
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	err := proto.Unmarshal(b, m)
	return m, err
}
