// Package arena provides scoped allocation with bulk release for the protocol decoders.
//
// Every decode of a control message receives an Arena. All variable sized data created
// while decoding (byte blobs, strings, element slices, optional sub-structures) is
// accounted to that arena. The caller releases the arena as a unit once it is done with
// the decoded message, which zeroes every byte slab and every object the arena handed out.
//
// Key Components:
//
//   - Arena: the allocation scope. Optionally bounded by a byte budget; an allocation
//     that would exceed it fails with ErrAllocationFailure instead of growing.
//
//   - NewObject / MakeSlice: typed allocation helpers (Go does not allow type parameters
//     on methods).
//
//   - Pool: a sync.Pool of arenas for servers that decode one request per arena.
//
// Thread Safety:
//
//	An Arena must only be used by one goroutine at a time. Pool is safe for concurrent use.
//
// Usage:
//
//	a := arena.New(1 << 20)
//	defer a.Release()
//	nodeMap, err := protocol.DecodeNew[protocol.NodeMap](buf, a)
package arena
