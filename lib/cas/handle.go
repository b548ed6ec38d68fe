package cas

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dPrim/lib/primitive"
)

// Handle is a reference to a single replicated value owned by the
// replication layer. Both methods may block on the network and honour ctx.
//
// CompareAndSet must be atomic and linearizable at the protocol level: of two
// racing calls with the same expected value at most one reports true.
// A false result means the value changed, any failure of the protocol itself
// (timeout, leader loss, partition) is reported as an error instead.
type Handle[T any] interface {
	// Get returns the current value under the protocol's read consistency.
	Get(ctx context.Context) (value T, err error)
	// CompareAndSet replaces the value with updated if it currently equals expected.
	CompareAndSet(ctx context.Context, expected, updated T) (ok bool, err error)
}

// --------------------------------------------------------------------------
// Codecs
// --------------------------------------------------------------------------

// Codec converts values to and from the bytes stored by the replication layer.
// Encode must be canonical (equal values give equal bytes) because
// CompareAndSet compares encoded values.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

// Int64Codec encodes int64 values as 8 bytes big endian. Zero is encoded as
// the empty value so that a register that was never written reads as 0 and
// can be swapped from 0.
type Int64Codec struct{}

func (Int64Codec) Encode(v int64) []byte {
	if v == 0 {
		return nil
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func (Int64Codec) Decode(b []byte) (int64, error) {
	switch len(b) {
	case 0:
		return 0, nil
	case 8:
		return int64(binary.BigEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("invalid int64 encoding of length %d", len(b))
	}
}

// Typed adapts a byte valued handle into a Handle[T] using a Codec.
type Typed[T any] struct {
	h     Handle[[]byte]
	codec Codec[T]
}

// NewTyped wraps h so that it stores values of type T.
func NewTyped[T any](h Handle[[]byte], codec Codec[T]) *Typed[T] {
	return &Typed[T]{h: h, codec: codec}
}

func (t *Typed[T]) Get(ctx context.Context) (T, error) {
	b, err := t.h.Get(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := t.codec.Decode(b)
	if err != nil {
		var zero T
		return zero, primitive.NewError(primitive.RetCInternalError, err.Error())
	}
	return v, nil
}

func (t *Typed[T]) CompareAndSet(ctx context.Context, expected, updated T) (bool, error) {
	return t.h.CompareAndSet(ctx, t.codec.Encode(expected), t.codec.Encode(updated))
}

// Compile-time assertion
var _ Handle[int64] = (*Typed[int64])(nil)
