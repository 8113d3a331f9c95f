// Package protocol implements the binary marshalling layer of the cluster control protocol.
//
// Every message exchanged between nodes (statistics, node maps, database maps, record
// buffers, tunables, public address lists, ...) is converted between its in-memory form and
// a flat byte buffer by three operations:
//
//   - Len(m) returns the exact encoded size
//   - Push(m, buf) writes the encoding, never past Len(m) bytes
//   - Pull(m, buf, arena) reads a message back, validating every length against the buffer
//
// Wire Format:
//
// All integers are big-endian with no padding between fields. Strings and blobs are a u32
// byte count followed by the bytes, lists are a u32 element count followed by the elements,
// optional values carry a u8 presence flag, socket addresses a u16 family discriminant
// (2 = IPv4, 10 = IPv6). Record buffers hold a u32 database id and a u32 total length
// followed by self describing (key_len, value_len, key, value) records.
//
// Key Components:
//
//   - Codec[T]: the length/push/pull triple for one wire type. Primitive codecs (Uint32,
//     Float64, ...), variable codecs (String, Blob, OptionalOf), the socket address codec
//     and ListOf compose into the message layouts.
//
//   - Message / Kind: the closed set of message kinds. Each kind declares its field list once
//     and length, push and pull all walk that list. The kind table declares the Category of
//     every kind, which decides where the decoder allocates.
//
//   - Unmarshal / DecodeScalar / DecodeInto / DecodeNew: decoders that require the message to
//     consume the whole buffer.
//
//   - ReqHeader, ReqControl, ReplyControl, ReqMessage: packet framing used by the transports.
//
// Errors:
//
// Decoding never panics on hostile input. It fails with one of ErrTruncatedInput,
// ErrMalformedLength, ErrUnsupportedVariant or ErrAllocationFailure (test with errors.Is).
// On failure the target message is reset and nothing decoded stays reachable once the
// arena is released. Encoding cannot fail; pushing into a buffer shorter than Len panics.
//
// Thread Safety:
//
// All codecs are stateless and may be used from any number of goroutines. A message or an
// arena must not be shared between concurrent decodes.
//
// Usage:
//
//	buf := protocol.Marshal(&protocol.PullDB{DBID: 0x42, LMaster: 1})
//
//	a := arena.New(0)
//	defer a.Release()
//	msg, err := protocol.Unmarshal(protocol.KindRecBuffer, data, len(data), a)
package protocol
