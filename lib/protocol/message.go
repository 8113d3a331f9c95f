package protocol

import (
	"fmt"
	"reflect"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/cockroachdb/errors"
)

// Message is implemented by every message kind of the control protocol.
// The set is closed: only types of this package can implement it.
type Message interface {
	// Kind returns the kind of the message
	Kind() Kind
	fielder
}

// Category describes how decoding a kind allocates memory
type Category uint8

const (
	// CategoryScalar kinds have a fixed layout, decoding allocates nothing
	CategoryScalar Category = iota + 1
	// CategoryNested kinds are decoded into a caller owned value, nested data lives in the arena
	CategoryNested
	// CategoryOwned kinds are allocated in the arena as a whole
	CategoryOwned
)

func (c Category) String() string {
	switch c {
	case CategoryScalar:
		return "scalar"
	case CategoryNested:
		return "nested"
	case CategoryOwned:
		return "owned"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// --------------------------------------------------------------------------
// Length / Push / Pull
// --------------------------------------------------------------------------

// Len returns the exact encoded size of m
func Len(m Message) int {
	return lenOf(m)
}

// Push encodes m into buf and returns the number of bytes written (always Len(m)).
// It panics if buf is shorter than Len(m).
func Push(m Message, buf []byte) int {
	need := lenOf(m)
	if len(buf) < need {
		panic(errors.AssertionFailedf("push %s: buffer has %d bytes, need %d", m.Kind(), len(buf), need))
	}
	return pushOf(m, buf)
}

// Marshal allocates a buffer of the exact size and pushes m into it
func Marshal(m Message) []byte {
	buf := make([]byte, lenOf(m))
	pushOf(m, buf)
	return buf
}

// Pull decodes one message from the start of buf into m and returns the number of bytes consumed.
// Nested data is allocated in a. On error m is reset to its zero value.
func Pull(m Message, buf []byte, a *arena.Arena) (int, error) {
	n, err := pullOf(m, buf, a)
	if err != nil {
		reset(m)
		return 0, errors.Wrapf(err, "pull %s", m.Kind())
	}
	return n, nil
}

// reset zeroes the value m points to, so a failed decode leaves no reference into the arena
func reset(m Message) {
	v := reflect.ValueOf(m)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().SetZero()
	}
}

// --------------------------------------------------------------------------
// Category Drivers
// --------------------------------------------------------------------------

// DecodeInto decodes buf into the caller owned message m. The whole buffer must be consumed.
func DecodeInto(m Message, buf []byte, a *arena.Arena) error {
	n, err := Pull(m, buf, a)
	if err != nil {
		return err
	}
	if n != len(buf) {
		reset(m)
		return malformed("%s: consumed %d of %d bytes", m.Kind(), n, len(buf))
	}
	return nil
}

// DecodeScalar decodes a kind of CategoryScalar by value, without any arena
func DecodeScalar[T any, PT interface {
	*T
	Message
}](buf []byte) (T, error) {
	var v T
	if kind := PT(&v).Kind(); kind.Category() != CategoryScalar {
		return v, errors.AssertionFailedf("DecodeScalar on %s kind %s", kind.Category(), kind)
	}
	err := DecodeInto(PT(&v), buf, nil)
	return v, err
}

// DecodeNew allocates the message in the arena and decodes buf into it
func DecodeNew[T any, PT interface {
	*T
	Message
}](buf []byte, a *arena.Arena) (PT, error) {
	p, err := arena.NewObject[T](a)
	if err != nil {
		return nil, err
	}
	if err := DecodeInto(PT(p), buf, a); err != nil {
		return nil, err
	}
	return PT(p), nil
}

// Unmarshal decodes a message of the given kind from the first declaredLen bytes of buf.
// The message must consume exactly declaredLen bytes. Where the top level value lives
// depends on the category of the kind.
func Unmarshal(kind Kind, buf []byte, declaredLen int, a *arena.Arena) (Message, error) {
	info, err := kind.info()
	if err != nil {
		return nil, err
	}
	if declaredLen < 0 {
		return nil, malformed("%s: negative length %d", kind, declaredLen)
	}
	if declaredLen > len(buf) {
		return nil, truncated(kind.String(), declaredLen, len(buf))
	}
	data := buf[:declaredLen]

	var m Message
	switch info.category {
	case CategoryScalar:
		m = info.new()
		err = DecodeInto(m, data, nil)
	case CategoryNested:
		m = info.new()
		err = DecodeInto(m, data, a)
	case CategoryOwned:
		if m, err = info.alloc(a); err != nil {
			return nil, err
		}
		err = DecodeInto(m, data, a)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
