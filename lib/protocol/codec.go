package protocol

import (
	"github.com/ValentinKolb/dctl/lib/arena"
)

// Codec is the length/push/pull triple for one wire type.
//
//   - Len returns the exact number of bytes Push writes for v.
//   - Push writes v to the start of buf and returns the number of bytes written.
//     buf must hold at least Len(v) bytes, a shorter buffer panics.
//   - Pull reads one value from the start of buf into v and returns the number of bytes consumed.
//     Variable sized data is allocated in the arena a (nil means garbage collected allocation).
//     Pull never reads past len(buf).
type Codec[T any] interface {
	Len(v *T) int
	Push(v *T, buf []byte) int
	Pull(buf []byte, a *arena.Arena, v *T) (int, error)
}

// --------------------------------------------------------------------------
// Field Layout
// --------------------------------------------------------------------------

type mode uint8

const (
	modeLen mode = iota
	modePush
	modePull
)

// layout walks the field list of a composite type. The same fields method
// computes the length, pushes or pulls depending on the mode, so the three
// operations can never disagree about the wire layout.
type layout struct {
	mode  mode
	buf   []byte
	off   int
	arena *arena.Arena
	err   error
}

// fielder is implemented by every composite wire type
type fielder interface {
	fields(l *layout)
}

// field processes one field of a composite type with the given codec
func field[T any](l *layout, v *T, c Codec[T]) {
	if l.err != nil {
		return
	}
	switch l.mode {
	case modeLen:
		l.off += c.Len(v)
	case modePush:
		l.off += c.Push(v, l.buf[l.off:])
	case modePull:
		n, err := c.Pull(l.buf[l.off:], l.arena, v)
		if err != nil {
			l.err = err
			return
		}
		l.off += n
	}
}

func lenOf(f fielder) int {
	l := layout{mode: modeLen}
	f.fields(&l)
	return l.off
}

func pushOf(f fielder, buf []byte) int {
	l := layout{mode: modePush, buf: buf}
	f.fields(&l)
	return l.off
}

func pullOf(f fielder, buf []byte, a *arena.Arena) (int, error) {
	l := layout{mode: modePull, buf: buf, arena: a}
	f.fields(&l)
	return l.off, l.err
}

// structCodec turns a composite type into a Codec so it can be used as list element or optional value
type structCodec[T any, PT interface {
	*T
	fielder
}] struct{}

func structOf[T any, PT interface {
	*T
	fielder
}]() Codec[T] {
	return structCodec[T, PT]{}
}

func (structCodec[T, PT]) Len(v *T) int {
	return lenOf(PT(v))
}

func (structCodec[T, PT]) Push(v *T, buf []byte) int {
	return pushOf(PT(v), buf)
}

func (structCodec[T, PT]) Pull(buf []byte, a *arena.Arena, v *T) (int, error) {
	return pullOf(PT(v), buf, a)
}
