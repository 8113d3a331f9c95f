// Package serializer converts the bodies of control packets. A control request is a
// protocol.ReqControl whose data field carries the encoded request payload, a control
// reply is a protocol.ReplyControl whose data field carries the encoded reply payload.
// The payload kinds are declared per opcode in lib/protocol.
//
// Key Components:
//
//   - IRPCSerializer: interface used by the control server and the control client.
//
//   - binarySerializerImpl: implementation on top of the lib/protocol codecs. Decoding
//     checks that every payload consumes its data field exactly and allocates nested
//     data in the caller's arena.
//
// Thread Safety:
//
//	The serializer is stateless and safe for concurrent use. Arenas passed to the
//	Deserialize methods must not be shared between goroutines.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	body, err := s.SerializeControl(&protocol.ReqControl{Opcode: protocol.OpcodePullDB},
//	    &protocol.PullDB{DBID: 0x42, LMaster: 1})
//	// ... send body, receive reply ...
//	a := arena.New(0)
//	defer a.Release()
//	reply, payload, err := s.DeserializeReply(replyBody, protocol.OpcodePullDB, a)
package serializer
