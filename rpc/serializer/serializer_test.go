package serializer

import (
	"testing"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"Binary": NewBinarySerializer,
}

// testControls returns control requests with matching payloads
func testControls() []struct {
	req     protocol.ReqControl
	payload protocol.Message
} {
	return []struct {
		req     protocol.ReqControl
		payload protocol.Message
	}{
		{protocol.ReqControl{Opcode: protocol.OpcodeGetNodeMap}, nil},
		{protocol.ReqControl{Opcode: protocol.OpcodePullDB, SrvID: 7, ClientID: 3}, &protocol.PullDB{DBID: 0x42, LMaster: 1}},
		{protocol.ReqControl{Opcode: protocol.OpcodeSetTunable}, &protocol.Tunable{Name: "EnableBans", Value: 0}},
		{
			protocol.ReqControl{Opcode: protocol.OpcodePushDB, Flags: protocol.ControlFlagNoReply},
			&protocol.RecBuffer{DBID: 7, Records: []protocol.Record{{Key: []byte("k1"), Value: []byte("v1")}, {Key: []byte("k2")}}},
		},
	}
}

// TestControlRoundTrip tests that control requests and their payloads survive a round trip
func TestControlRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for _, tc := range testControls() {
				req := tc.req
				data, err := s.SerializeControl(&req, tc.payload)
				if err != nil {
					t.Fatalf("Failed to serialize %s: %v", req.Opcode, err)
				}

				a := arena.New(0)
				got, payload, err := s.DeserializeControl(data, a)
				if err != nil {
					t.Fatalf("Failed to deserialize %s: %v", req.Opcode, err)
				}
				if got.Opcode != req.Opcode || got.SrvID != req.SrvID || got.ClientID != req.ClientID || got.Flags != req.Flags {
					t.Errorf("Header fields of %s changed: %+v", req.Opcode, got)
				}
				if tc.payload == nil {
					if payload != nil {
						t.Errorf("%s: unexpected payload %v", req.Opcode, payload)
					}
				} else if diff := cmp.Diff(tc.payload, payload); diff != "" {
					t.Errorf("%s payload mismatch (-want +got):\n%s", req.Opcode, diff)
				}
				a.Release()
			}
		})
	}
}

// TestReplyRoundTrip tests successful and failed replies
func TestReplyRoundTrip(t *testing.T) {
	s := NewBinarySerializer()
	a := arena.New(0)
	defer a.Release()

	vnnMap := &protocol.VNNMap{Generation: 5, Map: []uint32{0, 1, 2}}
	data := s.SerializeReply(&protocol.ReplyControl{}, vnnMap)

	reply, payload, err := s.DeserializeReply(data, protocol.OpcodeGetVNNMap, a)
	if err != nil {
		t.Fatalf("Failed to deserialize reply: %v", err)
	}
	if reply.Status != 0 {
		t.Errorf("Status = %d, want 0", reply.Status)
	}
	if diff := cmp.Diff(protocol.Message(vnnMap), payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	// a failed reply carries no payload even if the opcode has a reply kind
	data = s.SerializeReply(&protocol.ReplyControl{Status: -1, ErrMsg: "no such database"}, nil)
	reply, payload, err = s.DeserializeReply(data, protocol.OpcodeGetVNNMap, a)
	if err != nil {
		t.Fatalf("Failed to deserialize failed reply: %v", err)
	}
	if reply.Status != -1 || reply.ErrMsg != "no such database" || payload != nil {
		t.Errorf("unexpected failed reply %+v, payload %v", reply, payload)
	}
}

// TestSerializerErrors tests mismatching payloads and corrupt bodies
func TestSerializerErrors(t *testing.T) {
	s := NewBinarySerializer()

	req := protocol.ReqControl{Opcode: protocol.OpcodePullDB}
	if _, err := s.SerializeControl(&req, &protocol.Uptime{}); err == nil {
		t.Errorf("expected an error for a payload of the wrong kind")
	}

	// a pulldb payload with a trailing byte
	req = protocol.ReqControl{Opcode: protocol.OpcodePullDB, Data: append(protocol.Marshal(&protocol.PullDB{DBID: 1}), 0)}
	data := protocol.Marshal(&req)
	if _, _, err := s.DeserializeControl(data, arena.New(0)); !errors.Is(err, protocol.ErrMalformedLength) {
		t.Errorf("trailing payload byte: expected ErrMalformedLength, got %v", err)
	}

	// every strict prefix of a request body is truncated
	data, err := s.SerializeControl(&protocol.ReqControl{Opcode: protocol.OpcodeGetTunable}, &protocol.Tunable{Name: "RecoverTimeout"})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	for i := 0; i < len(data); i++ {
		if _, _, err := s.DeserializeControl(data[:i], arena.New(0)); !errors.Is(err, protocol.ErrTruncatedInput) {
			t.Fatalf("prefix %d: expected ErrTruncatedInput, got %v", i, err)
		}
	}

	// unknown opcodes decode without payload
	data = protocol.Marshal(&protocol.ReqControl{Opcode: 9999, Data: []byte{1, 2, 3}})
	got, payload, err := s.DeserializeControl(data, arena.New(0))
	if err != nil || payload != nil || got.Opcode != 9999 {
		t.Errorf("unknown opcode: got %+v, %v, %v", got, payload, err)
	}
}
