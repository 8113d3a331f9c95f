// Package testing provides a reusable conformance suite for the control protocol codecs.
//
// RunCodecTests drives every message kind known to the protocol package through the
// canonical cycle and fails the test on the first violation:
//
//   - a random instance is synthesized with Fill (slices get zero to four elements,
//     optional values are present half of the time, socket addresses alternate between
//     IPv4 and IPv6)
//   - Len is computed and Push must write exactly that many bytes, never more
//   - Unmarshal into a fresh arena must consume exactly that many bytes and yield a value
//     that is deeply equal (go-cmp) to the original, and independent of the input buffer
//   - kinds of CategoryScalar must not touch the arena at all
//   - every strict prefix of the encoding must fail with ErrTruncatedInput, and the arena
//     must hold nothing once released
//   - a trailing byte behind the encoding must fail with ErrMalformedLength
//
// The building blocks (RoundTrip, TruncationSweep, RandomMessage, Fill) are exported so
// other packages can check hand written messages as well.
//
// Example usage:
//
//	func TestCodecConformance(t *testing.T) {
//		protocoltesting.RunCodecTests(t, 42)
//	}
package testing
