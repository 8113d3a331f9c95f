package protocol

import (
	"encoding/binary"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/cockroachdb/errors"
)

// MaxBlobSize is the largest string or blob a decoder accepts
const MaxBlobSize = 64 << 20

// Codecs for length prefixed data: u32 byte count followed by the bytes.
// A zero count decodes to the zero value ("" or nil).
var (
	String Codec[string] = stringCodec{}
	Blob   Codec[[]byte] = blobCodec{}
)

// pullCount reads the u32 length prefix of a string or blob and checks it against the buffer
func pullCount(what string, buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, truncated(what+" length", 4, len(buf))
	}
	n := binary.BigEndian.Uint32(buf)
	if n > MaxBlobSize {
		return 0, malformed("%s length %d exceeds limit %d", what, n, MaxBlobSize)
	}
	if int(n) > len(buf)-4 {
		return 0, truncated(what, int(n), len(buf)-4)
	}
	return int(n), nil
}

// --------------------------------------------------------------------------
// String / Blob
// --------------------------------------------------------------------------

type stringCodec struct{}

func (stringCodec) Len(v *string) int { return 4 + len(*v) }

func (stringCodec) Push(v *string, buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(len(*v)))
	copy(buf[4:4+len(*v)], *v)
	return 4 + len(*v)
}

func (stringCodec) Pull(buf []byte, a *arena.Arena, v *string) (int, error) {
	n, err := pullCount("string", buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		*v = ""
		return 4, nil
	}
	s, err := a.String(buf[4 : 4+n])
	if err != nil {
		return 0, err
	}
	*v = s
	return 4 + n, nil
}

type blobCodec struct{}

func (blobCodec) Len(v *[]byte) int { return 4 + len(*v) }

func (blobCodec) Push(v *[]byte, buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(len(*v)))
	copy(buf[4:4+len(*v)], *v)
	return 4 + len(*v)
}

func (blobCodec) Pull(buf []byte, a *arena.Arena, v *[]byte) (int, error) {
	n, err := pullCount("blob", buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		*v = nil
		return 4, nil
	}
	b, err := a.Bytes(n)
	if err != nil {
		return 0, err
	}
	copy(b, buf[4:4+n])
	*v = b
	return 4 + n, nil
}

// --------------------------------------------------------------------------
// Optional
// --------------------------------------------------------------------------

// OptionalOf wraps a codec for values that may be absent: a u8 presence flag (0 or 1)
// followed by the value if present. A nil pointer encodes as absent.
func OptionalOf[T any](c Codec[T]) Codec[*T] {
	return optionalCodec[T]{elem: c}
}

type optionalCodec[T any] struct {
	elem Codec[T]
}

func (o optionalCodec[T]) Len(v **T) int {
	if *v == nil {
		return 1
	}
	return 1 + o.elem.Len(*v)
}

func (o optionalCodec[T]) Push(v **T, buf []byte) int {
	if *v == nil {
		buf[0] = 0
		return 1
	}
	buf[0] = 1
	return 1 + o.elem.Push(*v, buf[1:])
}

func (o optionalCodec[T]) Pull(buf []byte, a *arena.Arena, v **T) (int, error) {
	if len(buf) < 1 {
		return 0, truncated("presence flag", 1, len(buf))
	}
	switch buf[0] {
	case 0:
		*v = nil
		return 1, nil
	case 1:
	default:
		return 0, malformed("presence flag %d", buf[0])
	}

	p, err := arena.NewObject[T](a)
	if err != nil {
		return 0, err
	}
	n, err := o.elem.Pull(buf[1:], a, p)
	if err != nil {
		return 0, errors.Wrap(err, "optional value")
	}
	*v = p
	return 1 + n, nil
}
