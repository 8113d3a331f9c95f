package protocol

import (
	"fmt"
	"slices"
)

// Opcode names a control operation carried in ReqControl
type Opcode uint32

const (
	OpcodeProcessExists   Opcode = 0
	OpcodeGetStatistics   Opcode = 1
	OpcodePing            Opcode = 3
	OpcodeGetVNNMap       Opcode = 5
	OpcodeGetDBMap        Opcode = 9
	OpcodePullDB          Opcode = 13
	OpcodePushDB          Opcode = 14
	OpcodeTraverseStart   Opcode = 20
	OpcodeGetPNN          Opcode = 35
	OpcodeGetTunable      Opcode = 49
	OpcodeSetTunable      Opcode = 50
	OpcodeListTunables    Opcode = 51
	OpcodeUptime          Opcode = 55
	OpcodeGetPublicIPs    Opcode = 57
	OpcodeGetAllTunables  Opcode = 80
	OpcodeGetNodeMap      Opcode = 91
	OpcodeSetBanState     Opcode = 99
	OpcodeGetBanState     Opcode = 100
	OpcodeGetIfaces       Opcode = 108
	OpcodeGetDBStatistics Opcode = 123
)

// controlDef declares the payload kinds of a control, KindInvalid meaning no payload
type controlDef struct {
	name    string
	request Kind
	reply   Kind
}

var controls = map[Opcode]controlDef{
	OpcodeProcessExists:   {"PROCESS_EXISTS", KindInvalid, KindInvalid},
	OpcodeGetStatistics:   {"GET_STATISTICS", KindInvalid, KindStatistics},
	OpcodePing:            {"PING", KindInvalid, KindInvalid},
	OpcodeGetVNNMap:       {"GET_VNNMAP", KindInvalid, KindVNNMap},
	OpcodeGetDBMap:        {"GET_DBMAP", KindInvalid, KindDBIDMap},
	OpcodePullDB:          {"PULL_DB", KindPullDB, KindRecBuffer},
	OpcodePushDB:          {"PUSH_DB", KindRecBuffer, KindInvalid},
	OpcodeTraverseStart:   {"TRAVERSE_START", KindTraverseStart, KindRecBuffer},
	OpcodeGetPNN:          {"GET_PNN", KindInvalid, KindInvalid},
	OpcodeGetTunable:      {"GET_TUNABLE", KindTunable, KindTunable},
	OpcodeSetTunable:      {"SET_TUNABLE", KindTunable, KindInvalid},
	OpcodeListTunables:    {"LIST_TUNABLES", KindInvalid, KindVarList},
	OpcodeUptime:          {"UPTIME", KindInvalid, KindUptime},
	OpcodeGetPublicIPs:    {"GET_PUBLIC_IPS", KindInvalid, KindPublicIPList},
	OpcodeGetAllTunables:  {"GET_ALL_TUNABLES", KindInvalid, KindTunableList},
	OpcodeGetNodeMap:      {"GET_NODEMAP", KindInvalid, KindNodeMap},
	OpcodeSetBanState:     {"SET_BAN_STATE", KindBanState, KindInvalid},
	OpcodeGetBanState:     {"GET_BAN_STATE", KindInvalid, KindBanState},
	OpcodeGetIfaces:       {"GET_IFACES", KindInvalid, KindIfaceList},
	OpcodeGetDBStatistics: {"GET_DB_STATISTICS", KindPullDB, KindDBStatistics},
}

func (o Opcode) String() string {
	if def, ok := controls[o]; ok {
		return def.name
	}
	return fmt.Sprintf("CONTROL(%d)", uint32(o))
}

// Known reports whether the opcode is part of the control table
func (o Opcode) Known() bool {
	_, ok := controls[o]
	return ok
}

// RequestKind returns the kind of the request payload, KindInvalid if the control takes none
func (o Opcode) RequestKind() Kind {
	return controls[o].request
}

// ReplyKind returns the kind of the reply payload, KindInvalid if the reply carries only a status
func (o Opcode) ReplyKind() Kind {
	return controls[o].reply
}

// Opcodes returns all known opcodes in ascending order
func Opcodes() []Opcode {
	out := make([]Opcode, 0, len(controls))
	for o := range controls {
		out = append(out, o)
	}
	slices.Sort(out)
	return out
}
