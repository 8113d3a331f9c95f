package testing

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Iterations is the number of random messages RunCodecTests checks per kind
var Iterations = 16

// CompareOptions are the go-cmp options used to compare an original message with its decoded copy.
// Empty and nil slices are considered equal because an empty list decodes to nil.
var CompareOptions = []cmp.Option{cmpopts.EquateEmpty()}

// RunCodecTests drives every message kind through the canonical cycle:
// synthesize, length, push, pull into a fresh arena, deep compare.
// It also sweeps every strict prefix of the encoding and checks the arena accounting.
func RunCodecTests(t *testing.T, seed int64) {
	for _, kind := range protocol.Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(seed + int64(kind)))

			t.Run("RoundTrip", func(t *testing.T) {
				for i := 0; i < Iterations; i++ {
					RoundTrip(t, RandomMessage(kind, rnd))
				}
			})

			t.Run("Truncation", func(t *testing.T) {
				TruncationSweep(t, RandomMessage(kind, rnd))
			})

			t.Run("TrailingBytes", func(t *testing.T) {
				testTrailingBytes(t, RandomMessage(kind, rnd))
			})
		})
	}
}

// --------------------------------------------------------------------------
// Checks
// --------------------------------------------------------------------------

// RoundTrip checks that m survives encoding and decoding unchanged and that
// length, bytes written and bytes consumed agree
func RoundTrip(t testing.TB, m protocol.Message) {
	t.Helper()
	kind := m.Kind()

	n := protocol.Len(m)

	// push into a larger poisoned buffer to catch writes past the declared length
	buf := bytes.Repeat([]byte{0xAA}, n+16)
	if written := protocol.Push(m, buf); written != n {
		t.Fatalf("%s: Push wrote %d bytes, Len returned %d", kind, written, n)
	}
	for i := n; i < len(buf); i++ {
		if buf[i] != 0xAA {
			t.Fatalf("%s: Push wrote past its length at offset %d", kind, i)
		}
	}
	buf = buf[:n]

	a := arena.New(0)
	defer a.Release()

	got, err := protocol.Unmarshal(kind, buf, n, a)
	if err != nil {
		t.Fatalf("%s: Unmarshal failed: %v", kind, err)
	}
	if diff := cmp.Diff(m, got, CompareOptions...); diff != "" {
		t.Fatalf("%s: round trip mismatch (-want +got):\n%s", kind, diff)
	}

	// raw pull reports the consumed byte count
	fresh := kind.New()
	consumed, err := protocol.Pull(fresh, buf, a)
	if err != nil {
		t.Fatalf("%s: Pull failed: %v", kind, err)
	}
	if consumed != n {
		t.Fatalf("%s: Pull consumed %d bytes, Len returned %d", kind, consumed, n)
	}

	if kind.Category() == protocol.CategoryScalar {
		scratch := arena.New(0)
		if err := protocol.DecodeInto(kind.New(), buf, scratch); err != nil {
			t.Fatalf("%s: DecodeInto failed: %v", kind, err)
		}
		if scratch.Used() != 0 || scratch.Allocations() != 0 {
			t.Fatalf("%s: scalar kind touched the arena (%d bytes, %d allocations)", kind, scratch.Used(), scratch.Allocations())
		}
	}

	// the decoded copy must not alias the input buffer
	for i := range buf {
		buf[i] ^= 0xFF
	}
	if diff := cmp.Diff(m, got, CompareOptions...); diff != "" {
		t.Fatalf("%s: decoded message aliases the input buffer (-want +got):\n%s", kind, diff)
	}
}

// TruncationSweep checks that every strict prefix of the encoding of m fails with
// ErrTruncatedInput and that the arena holds nothing after release
func TruncationSweep(t testing.TB, m protocol.Message) {
	t.Helper()
	kind := m.Kind()
	buf := protocol.Marshal(m)

	a := arena.New(0)
	for k := 0; k < len(buf); k++ {
		got, err := protocol.Unmarshal(kind, buf[:k], k, a)
		if !errors.Is(err, protocol.ErrTruncatedInput) {
			t.Fatalf("%s: prefix of %d/%d bytes: expected ErrTruncatedInput, got %v", kind, k, len(buf), err)
		}
		if got != nil {
			t.Fatalf("%s: prefix of %d/%d bytes returned a message", kind, k, len(buf))
		}
		a.Release()
		if a.Allocations() != 0 || a.Used() != 0 {
			t.Fatalf("%s: arena not empty after release", kind)
		}
	}

	// a declared length beyond the buffer is a truncation as well
	if _, err := protocol.Unmarshal(kind, buf, len(buf)+1, a); !errors.Is(err, protocol.ErrTruncatedInput) {
		t.Fatalf("%s: declared length beyond buffer: expected ErrTruncatedInput, got %v", kind, err)
	}
}

// testTrailingBytes checks that a declared length larger than the encoding is rejected
func testTrailingBytes(t testing.TB, m protocol.Message) {
	buf := append(protocol.Marshal(m), 0)

	a := arena.New(0)
	defer a.Release()
	if _, err := protocol.Unmarshal(m.Kind(), buf, len(buf), a); !errors.Is(err, protocol.ErrMalformedLength) {
		t.Fatalf("%s: trailing byte: expected ErrMalformedLength, got %v", m.Kind(), err)
	}
}

// --------------------------------------------------------------------------
// Random Messages
// --------------------------------------------------------------------------

var (
	sockAddrType = reflect.TypeOf((*protocol.SockAddr)(nil)).Elem()
	byteSlice    = reflect.TypeOf([]byte(nil))
)

// RandomMessage returns a message of the given kind with every field randomly filled
func RandomMessage(kind protocol.Kind, rnd *rand.Rand) protocol.Message {
	m := kind.New()
	Fill(m, rnd)
	return m
}

// Fill sets every field reachable from the pointer p to a random value.
// Slices get 0-4 elements, optional values are absent half of the time, floats are finite.
func Fill(p interface{}, rnd *rand.Rand) {
	fill(reflect.ValueOf(p).Elem(), rnd, 0)
}

func fill(v reflect.Value, rnd *rand.Rand, depth int) {
	switch {
	case v.Type() == sockAddrType:
		v.Set(reflect.ValueOf(RandomSockAddr(rnd)))
		return
	case v.Type() == byteSlice:
		v.SetBytes(randomBytes(rnd, 24))
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(rnd.Intn(2) == 1)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(rnd.Uint64())
	case reflect.Int32, reflect.Int64:
		v.SetInt(int64(rnd.Uint64()))
	case reflect.Float64:
		v.SetFloat(rnd.NormFloat64() * 1000)
	case reflect.String:
		v.SetString(randomString(rnd, 24))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			fill(v.Index(i), rnd, depth)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			fill(v.Field(i), rnd, depth)
		}
	case reflect.Pointer:
		if depth > 3 || rnd.Intn(2) == 0 {
			v.SetZero()
			return
		}
		p := reflect.New(v.Type().Elem())
		fill(p.Elem(), rnd, depth+1)
		v.Set(p)
	case reflect.Slice:
		n := rnd.Intn(5)
		if depth > 3 || n == 0 {
			v.SetZero()
			return
		}
		s := reflect.MakeSlice(v.Type(), n, n)
		for i := 0; i < n; i++ {
			fill(s.Index(i), rnd, depth+1)
		}
		v.Set(s)
	default:
		panic("testing: cannot fill " + v.Type().String())
	}
}

// RandomSockAddr returns a random IPv4 or IPv6 address
func RandomSockAddr(rnd *rand.Rand) protocol.SockAddr {
	if rnd.Intn(2) == 0 {
		a := &protocol.SockAddrIn{Port: uint16(rnd.Intn(1 << 16))}
		rnd.Read(a.Addr[:])
		return a
	}
	a := &protocol.SockAddrIn6{
		Port:     uint16(rnd.Intn(1 << 16)),
		FlowInfo: rnd.Uint32(),
		ScopeID:  rnd.Uint32(),
	}
	rnd.Read(a.Addr[:])
	return a
}

func randomBytes(rnd *rand.Rand, max int) []byte {
	n := rnd.Intn(max + 1)
	if n == 0 {
		return nil
	}
	b := make([]byte, n)
	rnd.Read(b)
	return b
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"

func randomString(rnd *rand.Rand, max int) string {
	n := rnd.Intn(max + 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rnd.Intn(len(letters))]
	}
	return string(b)
}
