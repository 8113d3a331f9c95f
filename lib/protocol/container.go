package protocol

import (
	"encoding/binary"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/cockroachdb/errors"
)

// MaxElements is the largest element count a list decoder accepts
const MaxElements = 1 << 24

// ListOf returns the codec for an ordered sequence: u32 element count followed by the elements.
// Decoding allocates the slice once in the arena; an empty list decodes to nil.
func ListOf[T any](c Codec[T]) Codec[[]T] {
	return listCodec[T]{elem: c}
}

type listCodec[T any] struct {
	elem Codec[T]
}

func (lc listCodec[T]) Len(v *[]T) int {
	n := 4
	for i := range *v {
		n += lc.elem.Len(&(*v)[i])
	}
	return n
}

func (lc listCodec[T]) Push(v *[]T, buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(len(*v)))
	off := 4
	for i := range *v {
		off += lc.elem.Push(&(*v)[i], buf[off:])
	}
	return off
}

func (lc listCodec[T]) Pull(buf []byte, a *arena.Arena, v *[]T) (int, error) {
	if len(buf) < 4 {
		return 0, truncated("list count", 4, len(buf))
	}
	count := binary.BigEndian.Uint32(buf)
	if count > MaxElements {
		return 0, malformed("list count %d exceeds limit %d", count, MaxElements)
	}
	// every element takes at least one byte
	if int(count) > len(buf)-4 {
		return 0, truncated("list", int(count), len(buf)-4)
	}
	if count == 0 {
		*v = nil
		return 4, nil
	}

	elems, err := arena.MakeSlice[T](a, int(count))
	if err != nil {
		return 0, err
	}
	off := 4
	for i := range elems {
		n, err := lc.elem.Pull(buf[off:], a, &elems[i])
		if err != nil {
			return 0, errors.Wrapf(err, "element %d of %d", i, count)
		}
		off += n
	}
	*v = elems
	return off, nil
}
