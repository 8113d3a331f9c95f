package protocol

import (
	"strings"
)

// Node flags
const (
	NodeFlagDisconnected        uint32 = 0x00000001
	NodeFlagUnhealthy           uint32 = 0x00000002
	NodeFlagPermanentlyDisabled uint32 = 0x00000004
	NodeFlagBanned              uint32 = 0x00000008
	NodeFlagDeleted             uint32 = 0x00000010
	NodeFlagStopped             uint32 = 0x00000020

	NodeFlagDisabled = NodeFlagUnhealthy | NodeFlagPermanentlyDisabled
	NodeFlagInactive = NodeFlagDeleted | NodeFlagDisconnected | NodeFlagBanned | NodeFlagStopped
)

var nodeFlagNames = []struct {
	flag uint32
	name string
}{
	{NodeFlagDisconnected, "DISCONNECTED"},
	{NodeFlagUnhealthy, "UNHEALTHY"},
	{NodeFlagPermanentlyDisabled, "DISABLED"},
	{NodeFlagBanned, "BANNED"},
	{NodeFlagDeleted, "DELETED"},
	{NodeFlagStopped, "STOPPED"},
}

// NodeFlagsString renders node flags the way the status output shows them ("OK" for none)
func NodeFlagsString(flags uint32) string {
	if flags == 0 {
		return "OK"
	}
	var parts []string
	for _, f := range nodeFlagNames {
		if flags&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "OK"
	}
	return strings.Join(parts, "|")
}

// --------------------------------------------------------------------------
// Node Map
// --------------------------------------------------------------------------

// VNNMap maps virtual node numbers to physical nodes for one recovery generation
type VNNMap struct {
	Generation uint32
	Map        []uint32
}

var uint32ListCodec = ListOf(Uint32)

func (*VNNMap) Kind() Kind { return KindVNNMap }

func (m *VNNMap) fields(l *layout) {
	field(l, &m.Generation, Uint32)
	field(l, &m.Map, uint32ListCodec)
}

// NodeAndFlags is one entry of the node map
type NodeAndFlags struct {
	PNN   uint32
	Flags uint32
	Addr  SockAddr
}

func (*NodeAndFlags) Kind() Kind { return KindNodeAndFlags }

func (m *NodeAndFlags) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.Flags, Uint32)
	field(l, &m.Addr, SockAddrCodec)
}

// NodeMap lists all nodes of the cluster
type NodeMap struct {
	Nodes []NodeAndFlags
}

var nodeListCodec = ListOf(structOf[NodeAndFlags]())

func (*NodeMap) Kind() Kind { return KindNodeMap }

func (m *NodeMap) fields(l *layout) {
	field(l, &m.Nodes, nodeListCodec)
}

// NodeFlagChange announces a flag change of a node
type NodeFlagChange struct {
	PNN      uint32
	NewFlags uint32
	OldFlags uint32
}

func (*NodeFlagChange) Kind() Kind { return KindNodeFlagChange }

func (m *NodeFlagChange) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.NewFlags, Uint32)
	field(l, &m.OldFlags, Uint32)
}

// Uptime reports the start and recovery times of a node
type Uptime struct {
	CurrentTime          Timeval
	CtdbdStartTime       Timeval
	LastRecoveryStarted  Timeval
	LastRecoveryFinished Timeval
}

func (*Uptime) Kind() Kind { return KindUptime }

func (m *Uptime) fields(l *layout) {
	field(l, &m.CurrentTime, TimevalCodec)
	field(l, &m.CtdbdStartTime, TimevalCodec)
	field(l, &m.LastRecoveryStarted, TimevalCodec)
	field(l, &m.LastRecoveryFinished, TimevalCodec)
}

// BanState bans a node for Time seconds (0 lifts the ban)
type BanState struct {
	PNN  uint32
	Time uint32
}

func (*BanState) Kind() Kind { return KindBanState }

func (m *BanState) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.Time, Uint32)
}

// --------------------------------------------------------------------------
// Messages
// --------------------------------------------------------------------------

// ElectionMessage is broadcast by a node that wants to become recovery master
type ElectionMessage struct {
	NumConnected uint32
	PriorityTime Timeval
	PNN          uint32
	NodeFlags    uint32
}

func (*ElectionMessage) Kind() Kind { return KindElectionMessage }

func (m *ElectionMessage) fields(l *layout) {
	field(l, &m.NumConnected, Uint32)
	field(l, &m.PriorityTime, TimevalCodec)
	field(l, &m.PNN, Uint32)
	field(l, &m.NodeFlags, Uint32)
}

// SrvidMessage addresses a reply to srvid on node pnn
type SrvidMessage struct {
	PNN   uint32
	SrvID uint64
}

func (*SrvidMessage) Kind() Kind { return KindSrvidMessage }

func (m *SrvidMessage) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.SrvID, Uint64)
}

// DisableMessage disables a feature for Timeout seconds
type DisableMessage struct {
	PNN     uint32
	SrvID   uint64
	Timeout uint32
}

func (*DisableMessage) Kind() Kind { return KindDisableMessage }

func (m *DisableMessage) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.SrvID, Uint64)
	field(l, &m.Timeout, Uint32)
}

// NotifyData is delivered to srvid when a client disconnects
type NotifyData struct {
	SrvID uint64
	Data  []byte
}

func (*NotifyData) Kind() Kind { return KindNotifyData }

func (m *NotifyData) fields(l *layout) {
	field(l, &m.SrvID, Uint64)
	field(l, &m.Data, Blob)
}

// --------------------------------------------------------------------------
// Server ID / Global Lock
// --------------------------------------------------------------------------

// ServerID identifies a process on a node
type ServerID struct {
	PID      uint64
	TaskID   uint32
	VNN      uint32
	UniqueID uint64
}

func (*ServerID) Kind() Kind { return KindServerID }

func (m *ServerID) fields(l *layout) {
	field(l, &m.PID, Uint64)
	field(l, &m.TaskID, Uint32)
	field(l, &m.VNN, Uint32)
	field(l, &m.UniqueID, Uint64)
}

// GLockType is the mode of a global lock entry
type GLockType uint32

const (
	GLockRead GLockType = iota
	GLockWrite
)

func (t GLockType) String() string {
	switch t {
	case GLockRead:
		return "read"
	case GLockWrite:
		return "write"
	default:
		return "unknown"
	}
}

// GLock is one holder or waiter of a global lock
type GLock struct {
	Type GLockType
	SID  ServerID
}

func (*GLock) Kind() Kind { return KindGLock }

func (m *GLock) fields(l *layout) {
	field(l, (*uint32)(&m.Type), Uint32)
	m.SID.fields(l)
}

// GLockList lists all entries of a global lock record
type GLockList struct {
	Locks []GLock
}

var glockListCodec = ListOf(structOf[GLock]())

func (*GLockList) Kind() Kind { return KindGLockList }

func (m *GLockList) fields(l *layout) {
	field(l, &m.Locks, glockListCodec)
}

// --------------------------------------------------------------------------
// Event Scripts
// --------------------------------------------------------------------------

// Script is the result of one event script run
type Script struct {
	Name     string
	Start    Timeval
	Finished Timeval
	Status   int32
	Output   string
}

func (*Script) Kind() Kind { return KindScript }

func (m *Script) fields(l *layout) {
	field(l, &m.Name, String)
	field(l, &m.Start, TimevalCodec)
	field(l, &m.Finished, TimevalCodec)
	field(l, &m.Status, Int32)
	field(l, &m.Output, String)
}

// ScriptList holds the results of all scripts of one event
type ScriptList struct {
	Scripts []Script
}

var scriptListCodec = ListOf(structOf[Script]())

func (*ScriptList) Kind() Kind { return KindScriptList }

func (m *ScriptList) fields(l *layout) {
	field(l, &m.Scripts, scriptListCodec)
}
