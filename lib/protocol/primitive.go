package protocol

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ValentinKolb/dctl/lib/arena"
)

// Codecs for the fixed size primitive wire types. All integers are big-endian, bool is a single byte.
var (
	Uint8        Codec[uint8]   = uint8Codec{}
	Uint16       Codec[uint16]  = uint16Codec{}
	Int32        Codec[int32]   = int32Codec{}
	Uint32       Codec[uint32]  = uint32Codec{}
	Int64        Codec[int64]   = int64Codec{}
	Uint64       Codec[uint64]  = uint64Codec{}
	Float64      Codec[float64] = float64Codec{}
	Bool         Codec[bool]    = boolCodec{}
	TimevalCodec Codec[Timeval] = structOf[Timeval]()
)

// --------------------------------------------------------------------------
// Integers
// --------------------------------------------------------------------------

type uint8Codec struct{}

func (uint8Codec) Len(*uint8) int { return 1 }

func (uint8Codec) Push(v *uint8, buf []byte) int {
	buf[0] = *v
	return 1
}

func (uint8Codec) Pull(buf []byte, _ *arena.Arena, v *uint8) (int, error) {
	if len(buf) < 1 {
		return 0, truncated("uint8", 1, len(buf))
	}
	*v = buf[0]
	return 1, nil
}

type uint16Codec struct{}

func (uint16Codec) Len(*uint16) int { return 2 }

func (uint16Codec) Push(v *uint16, buf []byte) int {
	binary.BigEndian.PutUint16(buf, *v)
	return 2
}

func (uint16Codec) Pull(buf []byte, _ *arena.Arena, v *uint16) (int, error) {
	if len(buf) < 2 {
		return 0, truncated("uint16", 2, len(buf))
	}
	*v = binary.BigEndian.Uint16(buf)
	return 2, nil
}

type uint32Codec struct{}

func (uint32Codec) Len(*uint32) int { return 4 }

func (uint32Codec) Push(v *uint32, buf []byte) int {
	binary.BigEndian.PutUint32(buf, *v)
	return 4
}

func (uint32Codec) Pull(buf []byte, _ *arena.Arena, v *uint32) (int, error) {
	if len(buf) < 4 {
		return 0, truncated("uint32", 4, len(buf))
	}
	*v = binary.BigEndian.Uint32(buf)
	return 4, nil
}

type int32Codec struct{}

func (int32Codec) Len(*int32) int { return 4 }

func (int32Codec) Push(v *int32, buf []byte) int {
	binary.BigEndian.PutUint32(buf, uint32(*v))
	return 4
}

func (int32Codec) Pull(buf []byte, _ *arena.Arena, v *int32) (int, error) {
	if len(buf) < 4 {
		return 0, truncated("int32", 4, len(buf))
	}
	*v = int32(binary.BigEndian.Uint32(buf))
	return 4, nil
}

type uint64Codec struct{}

func (uint64Codec) Len(*uint64) int { return 8 }

func (uint64Codec) Push(v *uint64, buf []byte) int {
	binary.BigEndian.PutUint64(buf, *v)
	return 8
}

func (uint64Codec) Pull(buf []byte, _ *arena.Arena, v *uint64) (int, error) {
	if len(buf) < 8 {
		return 0, truncated("uint64", 8, len(buf))
	}
	*v = binary.BigEndian.Uint64(buf)
	return 8, nil
}

type int64Codec struct{}

func (int64Codec) Len(*int64) int { return 8 }

func (int64Codec) Push(v *int64, buf []byte) int {
	binary.BigEndian.PutUint64(buf, uint64(*v))
	return 8
}

func (int64Codec) Pull(buf []byte, _ *arena.Arena, v *int64) (int, error) {
	if len(buf) < 8 {
		return 0, truncated("int64", 8, len(buf))
	}
	*v = int64(binary.BigEndian.Uint64(buf))
	return 8, nil
}

// --------------------------------------------------------------------------
// Float / Bool
// --------------------------------------------------------------------------

type float64Codec struct{}

func (float64Codec) Len(*float64) int { return 8 }

func (float64Codec) Push(v *float64, buf []byte) int {
	binary.BigEndian.PutUint64(buf, math.Float64bits(*v))
	return 8
}

func (float64Codec) Pull(buf []byte, _ *arena.Arena, v *float64) (int, error) {
	if len(buf) < 8 {
		return 0, truncated("float64", 8, len(buf))
	}
	*v = math.Float64frombits(binary.BigEndian.Uint64(buf))
	return 8, nil
}

type boolCodec struct{}

func (boolCodec) Len(*bool) int { return 1 }

func (boolCodec) Push(v *bool, buf []byte) int {
	if *v {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	return 1
}

func (boolCodec) Pull(buf []byte, _ *arena.Arena, v *bool) (int, error) {
	if len(buf) < 1 {
		return 0, truncated("bool", 1, len(buf))
	}
	*v = buf[0] != 0
	return 1, nil
}

// --------------------------------------------------------------------------
// Timeval
// --------------------------------------------------------------------------

// Timeval is a point in time as seconds and microseconds since the unix epoch
type Timeval struct {
	Sec  int64
	Usec int64
}

// TimevalOf converts a time.Time (microsecond precision)
func TimevalOf(t time.Time) Timeval {
	if t.IsZero() {
		return Timeval{}
	}
	us := t.UnixMicro()
	return Timeval{Sec: us / 1e6, Usec: us % 1e6}
}

// Time converts back to a time.Time. The zero Timeval maps to the zero time.
func (t Timeval) Time() time.Time {
	if t == (Timeval{}) {
		return time.Time{}
	}
	return time.Unix(t.Sec, t.Usec*1000)
}

// IsZero reports whether t is unset
func (t Timeval) IsZero() bool {
	return t == (Timeval{})
}

func (t *Timeval) fields(l *layout) {
	field(l, &t.Sec, Int64)
	field(l, &t.Usec, Int64)
}
