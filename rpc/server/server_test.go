package server

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/transport/unix"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

// newTestServer creates an initialized server without starting the transport
func newTestServer(t *testing.T) *RPCServer {
	t.Helper()

	config := common.ServerConfig{
		PNN:       1,
		Nodes:     []string{"10.0.0.1:4379", "10.0.0.2:4379"},
		PublicIPs: []string{"192.168.0.10/24@eth0", "192.168.0.11/24@eth0"},
		Databases: []string{"locking.tdb", "secrets.tdb:persistent"},
		Transport: common.ServerTransportConfig{Endpoint: filepath.Join(t.TempDir(), "dctl.sock")},
		LogLevel:  "error",
	}

	s := NewRPCServer(config, unix.NewUnixServerTransport(), serializer.NewBinarySerializer())
	if err := s.init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// control sends one control through the packet handler and decodes the reply
func control(t *testing.T, s *RPCServer, destNode uint32, req protocol.ReqControl, payload protocol.Message) (protocol.ReplyControl, protocol.Message) {
	t.Helper()

	ser := serializer.NewBinarySerializer()
	body, err := ser.SerializeControl(&req, payload)
	if err != nil {
		t.Fatalf("SerializeControl failed: %v", err)
	}

	hdr := protocol.NewReqHeader(protocol.OperationControl, destNode, 7, 42)
	op, out := s.handlePacket(hdr, body)
	if op != protocol.OperationReplyControl {
		t.Fatalf("reply operation = %s, want REPLY_CONTROL", op)
	}
	if out == nil {
		t.Fatalf("no reply for %s", req.Opcode)
	}

	reply, replyPayload, err := ser.DeserializeReply(out, req.Opcode, arena.New(0))
	if err != nil {
		t.Fatalf("DeserializeReply failed: %v", err)
	}
	return reply, replyPayload
}

// TestHandlerTable tests that every known control has a handler
func TestHandlerTable(t *testing.T) {
	adapter := NewNodeServerAdapter()
	if diff := cmp.Diff(protocol.Opcodes(), adapter.Opcodes()); diff != "" {
		t.Errorf("handled opcodes mismatch (-known +handled):\n%s", diff)
	}
}

// TestStatusControls tests the controls that answer with a status only
func TestStatusControls(t *testing.T) {
	s := newTestServer(t)

	reply, _ := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeGetPNN}, nil)
	if reply.Status != 1 {
		t.Errorf("GET_PNN status = %d, want 1", reply.Status)
	}

	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodePing, ClientID: 3}, nil)
	// clients 0 and 3 have sent controls by now
	if reply.Status != 2 {
		t.Errorf("PING status = %d, want 2 clients", reply.Status)
	}

	pid := binary.BigEndian.AppendUint32(nil, uint32(os.Getpid()))
	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeProcessExists, Data: pid}, nil)
	if reply.Status != 0 {
		t.Errorf("PROCESS_EXISTS(own pid) status = %d, want 0", reply.Status)
	}
	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeProcessExists, Data: []byte{0, 0, 0, 0}}, nil)
	if reply.Status != StatusNoProcess {
		t.Errorf("PROCESS_EXISTS(0) status = %d, want %d", reply.Status, StatusNoProcess)
	}
}

// TestReadControls tests controls returning node state
func TestReadControls(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		opcode protocol.Opcode
		check  func(t *testing.T, payload protocol.Message)
	}{
		{protocol.OpcodeGetNodeMap, func(t *testing.T, payload protocol.Message) {
			m := payload.(*protocol.NodeMap)
			if len(m.Nodes) != 2 || m.Nodes[1].Addr.String() != "10.0.0.2:4379" {
				t.Errorf("unexpected node map %+v", m.Nodes)
			}
		}},
		{protocol.OpcodeGetVNNMap, func(t *testing.T, payload protocol.Message) {
			m := payload.(*protocol.VNNMap)
			if diff := cmp.Diff([]uint32{0, 1}, m.Map); diff != "" {
				t.Errorf("vnn map mismatch (-want +got):\n%s", diff)
			}
		}},
		{protocol.OpcodeGetDBMap, func(t *testing.T, payload protocol.Message) {
			if m := payload.(*protocol.DBIDMap); len(m.DBs) != 2 {
				t.Errorf("db map has %d entries, want 2", len(m.DBs))
			}
		}},
		{protocol.OpcodeUptime, func(t *testing.T, payload protocol.Message) {
			if u := payload.(*protocol.Uptime); u.CtdbdStartTime.IsZero() {
				t.Error("start time not set")
			}
		}},
		{protocol.OpcodeListTunables, func(t *testing.T, payload protocol.Message) {
			if l := payload.(*protocol.VarList); len(l.Vars) != len(protocol.TunableNames()) {
				t.Errorf("tunable list has %d names", len(l.Vars))
			}
		}},
		{protocol.OpcodeGetAllTunables, func(t *testing.T, payload protocol.Message) {
			if l := payload.(*protocol.TunableList); *l != protocol.DefaultTunables() {
				t.Error("tunables differ from the defaults")
			}
		}},
		{protocol.OpcodeGetPublicIPs, func(t *testing.T, payload protocol.Message) {
			l := payload.(*protocol.PublicIPList)
			if len(l.IPs) != 2 || l.IPs[0].PNN != 0 || l.IPs[1].PNN != 1 {
				t.Errorf("unexpected public addresses %+v", l.IPs)
			}
		}},
		{protocol.OpcodeGetIfaces, func(t *testing.T, payload protocol.Message) {
			l := payload.(*protocol.IfaceList)
			if len(l.Ifaces) != 1 || l.Ifaces[0].Name != "eth0" || l.Ifaces[0].References != 1 {
				t.Errorf("unexpected ifaces %+v", l.Ifaces)
			}
		}},
		{protocol.OpcodeGetBanState, func(t *testing.T, payload protocol.Message) {
			if b := payload.(*protocol.BanState); b.Time != 0 {
				t.Errorf("fresh node is banned: %+v", b)
			}
		}},
		{protocol.OpcodeGetStatistics, func(t *testing.T, payload protocol.Message) {
			if st := payload.(*protocol.Statistics); st.Client.ReqControl == 0 {
				t.Error("statistics do not count the running control")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.opcode.String(), func(t *testing.T) {
			reply, payload := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: tt.opcode}, nil)
			if reply.Status != 0 {
				t.Fatalf("status %d: %s", reply.Status, reply.ErrMsg)
			}
			if payload == nil {
				t.Fatal("reply without payload")
			}
			tt.check(t, payload)
		})
	}
}

// TestDatabaseControls tests pushing, pulling and traversing records
func TestDatabaseControls(t *testing.T) {
	s := newTestServer(t)
	dbID := node.DatabaseID("locking.tdb")

	h := protocol.LTDBHeader{RSN: 1, DMaster: 1}
	push := &protocol.RecBuffer{DBID: dbID, Records: []protocol.Record{
		{Key: []byte("k1"), Value: protocol.JoinLTDBRecord(&h, []byte("v1"))},
		{Key: []byte("k2"), Value: protocol.JoinLTDBRecord(&h, nil)},
	}}
	reply, _ := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodePushDB}, push)
	if reply.Status != 0 {
		t.Fatalf("PUSH_DB status %d: %s", reply.Status, reply.ErrMsg)
	}

	reply, payload := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodePullDB},
		&protocol.PullDB{DBID: dbID, LMaster: protocol.LMasterAny})
	if reply.Status != 0 {
		t.Fatalf("PULL_DB status %d: %s", reply.Status, reply.ErrMsg)
	}
	if diff := cmp.Diff(push, payload); diff != "" {
		t.Errorf("pulled records mismatch (-pushed +pulled):\n%s", diff)
	}

	_, payload = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeTraverseStart},
		&protocol.TraverseStart{DBID: dbID, ReqID: 1})
	if buf := payload.(*protocol.RecBuffer); len(buf.Records) != 1 || string(buf.Records[0].Key) != "k1" {
		t.Errorf("traverse returned %+v, want only k1", buf.Records)
	}

	_, payload = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeGetDBStatistics},
		&protocol.PullDB{DBID: dbID})
	if st := payload.(*protocol.DBStatistics); st.Locks.NumCalls == 0 {
		t.Error("db statistics do not count the lock calls")
	}

	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodePullDB},
		&protocol.PullDB{DBID: 12345, LMaster: protocol.LMasterAny})
	if reply.Status != StatusNotFound || reply.ErrMsg == "" {
		t.Errorf("PULL_DB of unknown db: status %d msg %q", reply.Status, reply.ErrMsg)
	}
}

// TestWriteControls tests tunable and ban controls
func TestWriteControls(t *testing.T) {
	s := newTestServer(t)

	reply, _ := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeSetTunable},
		&protocol.Tunable{Name: "RecoverTimeout", Value: 99})
	if reply.Status != 0 {
		t.Fatalf("SET_TUNABLE status %d: %s", reply.Status, reply.ErrMsg)
	}
	_, payload := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeGetTunable},
		&protocol.Tunable{Name: "recovertimeout"})
	if tun := payload.(*protocol.Tunable); tun.Name != "RecoverTimeout" || tun.Value != 99 {
		t.Errorf("GET_TUNABLE = %+v, want RecoverTimeout=99", tun)
	}
	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeGetTunable},
		&protocol.Tunable{Name: "Bogus"})
	if reply.Status != StatusNotFound {
		t.Errorf("GET_TUNABLE(unknown) status = %d, want %d", reply.Status, StatusNotFound)
	}

	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeSetBanState},
		&protocol.BanState{PNN: 1, Time: 60})
	if reply.Status != 0 {
		t.Fatalf("SET_BAN_STATE status %d: %s", reply.Status, reply.ErrMsg)
	}
	_, payload = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeGetBanState}, nil)
	if b := payload.(*protocol.BanState); b.Time != 60 {
		t.Errorf("GET_BAN_STATE = %+v, want 60 seconds", b)
	}

	reply, _ = control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.OpcodeSetBanState},
		&protocol.BanState{PNN: 0, Time: 60})
	if reply.Status != StatusInvalid {
		t.Errorf("banning another node: status %d, want %d", reply.Status, StatusInvalid)
	}
}

// TestFailedControls tests the replies for requests the server cannot answer
func TestFailedControls(t *testing.T) {
	s := newTestServer(t)

	reply, _ := control(t, s, protocol.DestCurrent, protocol.ReqControl{Opcode: protocol.Opcode(9999)}, nil)
	if reply.Status != StatusUnsupported || reply.ErrMsg == "" {
		t.Errorf("unknown opcode: status %d msg %q", reply.Status, reply.ErrMsg)
	}

	reply, _ = control(t, s, 0, protocol.ReqControl{Opcode: protocol.OpcodeGetPNN}, nil)
	if reply.Status != StatusInvalid {
		t.Errorf("control for node 0: status %d, want %d", reply.Status, StatusInvalid)
	}

	// a body that cannot be decoded still gets a reply
	hdr := protocol.NewReqHeader(protocol.OperationControl, protocol.DestCurrent, 7, 1)
	op, out := s.handlePacket(hdr, []byte{0, 0, 0})
	if op != protocol.OperationReplyControl || out == nil {
		t.Fatal("no reply for a truncated control")
	}
	var failed protocol.ReplyControl
	if err := protocol.DecodeInto(&failed, out, nil); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if failed.Status != StatusInvalid {
		t.Errorf("truncated control: status %d, want %d", failed.Status, StatusInvalid)
	}

	// controls flagged no-reply are answered with nothing
	ser := serializer.NewBinarySerializer()
	body, _ := ser.SerializeControl(&protocol.ReqControl{Opcode: protocol.OpcodePing, Flags: protocol.ControlFlagNoReply}, nil)
	if _, out := s.handlePacket(hdr, body); out != nil {
		t.Error("no-reply control was answered")
	}

	// messages are consumed without reply
	msg := protocol.Marshal(&protocol.ReqMessage{SrvID: 0xF100, Data: []byte("hello")})
	if _, out := s.handlePacket(protocol.NewReqHeader(protocol.OperationMessage, protocol.DestCurrent, 0, 2), msg); out != nil {
		t.Error("message was answered")
	}
	if st := s.Node().Statistics(); st.Client.ReqMessage != 1 {
		t.Errorf("ReqMessage = %d, want 1", st.Client.ReqMessage)
	}
}

// TestPayloadOf tests that handlers only accept the payload kind of their control
func TestPayloadOf(t *testing.T) {
	req := &protocol.ReqControl{Opcode: protocol.OpcodePullDB}

	tests := []struct {
		name    string
		payload protocol.Message
		wantErr bool
	}{
		{"Matching", &protocol.PullDB{DBID: 7, LMaster: 1}, false},
		{"OtherKind", &protocol.Tunable{Name: "EnableBans"}, true},
		{"Missing", nil, true},
		{"TypedNil", (*protocol.PullDB)(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := payloadOf[protocol.PullDB](req, tt.payload)
			if tt.wantErr {
				if !errors.Is(err, ErrWrongPayload) {
					t.Errorf("payloadOf() error = %v, want ErrWrongPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("payloadOf() failed: %v", err)
			}
			if p.DBID != 7 || p.LMaster != 1 {
				t.Errorf("payloadOf() = %+v", p)
			}
		})
	}

	// a handler receiving a payload of another control fails with the invalid status
	s := newTestServer(t)
	_, _, err := handlePullDB(req, &protocol.BanState{PNN: 1}, s.Node())
	if got := statusOf(err); got != StatusInvalid {
		t.Errorf("handlePullDB(wrong payload) status = %d, want %d", got, StatusInvalid)
	}
}
