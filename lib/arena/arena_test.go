package arena

import (
	"testing"

	"github.com/cockroachdb/errors"
)

// TestBytes tests small and large byte allocations
func TestBytes(t *testing.T) {
	a := New(0)

	small, err := a.Bytes(10)
	if err != nil {
		t.Fatalf("Bytes(10) failed: %v", err)
	}
	if len(small) != 10 || cap(small) != 10 {
		t.Errorf("expected len=cap=10, got len=%d cap=%d", len(small), cap(small))
	}

	large, err := a.Bytes(largeAllocation * 2)
	if err != nil {
		t.Fatalf("Bytes(large) failed: %v", err)
	}
	if len(large) != largeAllocation*2 {
		t.Errorf("expected len %d, got %d", largeAllocation*2, len(large))
	}

	if a.Used() != 10+largeAllocation*2 {
		t.Errorf("Used() = %d, want %d", a.Used(), 10+largeAllocation*2)
	}
	if a.Allocations() != 2 {
		t.Errorf("Allocations() = %d, want 2", a.Allocations())
	}
}

// TestBytesDoNotOverlap makes sure consecutive small allocations are independent
func TestBytesDoNotOverlap(t *testing.T) {
	a := New(0)
	first, _ := a.Bytes(4)
	second, _ := a.Bytes(4)
	copy(first, "abcd")
	copy(second, "efgh")

	if string(first) != "abcd" || string(second) != "efgh" {
		t.Errorf("allocations overlap: %q %q", first, second)
	}

	// appending to the first slice must not overwrite the second one
	_ = append(first, 'x')
	if string(second) != "efgh" {
		t.Errorf("append leaked into neighbour allocation: %q", second)
	}
}

// TestLimit tests that the byte budget is enforced
func TestLimit(t *testing.T) {
	a := New(16)

	if _, err := a.Bytes(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := a.Bytes(10)
	if !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure, got %v", err)
	}
	if _, err := MakeSlice[uint64](a, 2); !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for slice, got %v", err)
	}
	if _, err := a.String([]byte("0123456789")); !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("expected ErrAllocationFailure for string, got %v", err)
	}

	// a failed allocation does not consume budget
	if a.Used() != 10 {
		t.Errorf("Used() = %d, want 10", a.Used())
	}
}

// TestRelease tests that release zeroes everything the arena handed out
func TestRelease(t *testing.T) {
	type pair struct {
		A, B uint32
	}

	a := New(0)
	b, _ := a.Bytes(8)
	copy(b, "12345678")
	large, _ := a.Bytes(largeAllocation)
	large[0] = 1
	obj, _ := NewObject[pair](a)
	obj.A, obj.B = 1, 2
	s, _ := MakeSlice[pair](a, 3)
	s[2] = pair{3, 4}

	a.Release()

	if string(b) != string(make([]byte, 8)) {
		t.Errorf("bytes not zeroed: %q", b)
	}
	if large[0] != 0 {
		t.Errorf("large slab not zeroed")
	}
	if *obj != (pair{}) {
		t.Errorf("object not reset: %+v", *obj)
	}
	if s[2] != (pair{}) {
		t.Errorf("slice not reset: %+v", s)
	}
	if a.Used() != 0 || a.Allocations() != 0 {
		t.Errorf("accounting not reset: used=%d allocs=%d", a.Used(), a.Allocations())
	}

	// the arena is reusable
	if _, err := a.Bytes(4); err != nil {
		t.Errorf("arena not reusable after release: %v", err)
	}
}

// TestStringRelease tests that strings count against the budget and outlive a release
func TestStringRelease(t *testing.T) {
	a := New(8)
	src := []byte("control")

	str, err := a.String(src)
	if err != nil {
		t.Fatalf("String failed: %v", err)
	}
	if a.Used() != len(src) {
		t.Errorf("Used() = %d, want %d", a.Used(), len(src))
	}
	if _, err := a.String([]byte("xx")); !errors.Is(err, ErrAllocationFailure) {
		t.Errorf("String beyond the budget: expected ErrAllocationFailure, got %v", err)
	}

	a.Release()
	if a.Used() != 0 {
		t.Errorf("budget not returned: used=%d", a.Used())
	}
	if str != "control" {
		t.Errorf("string changed after release: %q", str)
	}
}

// TestNilArena tests the heap fallback
func TestNilArena(t *testing.T) {
	var a *Arena

	if b, err := a.Bytes(3); err != nil || len(b) != 3 {
		t.Errorf("Bytes on nil arena: %v %v", b, err)
	}
	if s, err := a.String([]byte("x")); err != nil || s != "x" {
		t.Errorf("String on nil arena: %q %v", s, err)
	}
	if p, err := NewObject[int](a); err != nil || p == nil {
		t.Errorf("NewObject on nil arena: %v %v", p, err)
	}
	if s, err := MakeSlice[int](a, 2); err != nil || len(s) != 2 {
		t.Errorf("MakeSlice on nil arena: %v %v", s, err)
	}
	a.Release()
	if a.Used() != 0 {
		t.Errorf("nil arena reports usage")
	}
}

// TestPool tests that pooled arenas come back empty
func TestPool(t *testing.T) {
	p := NewPool(64)

	a := p.Get()
	if a.Limit() != 64 {
		t.Errorf("Limit() = %d, want 64", a.Limit())
	}
	_, _ = a.Bytes(32)
	p.Put(a)

	b := p.Get()
	if b.Used() != 0 {
		t.Errorf("pooled arena not released: used=%d", b.Used())
	}
	p.Put(nil)
}
