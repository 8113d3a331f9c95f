package protocol

import (
	"fmt"

	"github.com/ValentinKolb/dctl/lib/arena"
)

// Kind identifies a message type of the control protocol
type Kind uint32

const (
	KindInvalid Kind = iota
	KindLatencyCounter
	KindStatistics
	KindVNNMap
	KindDBID
	KindDBIDMap
	KindPullDB
	KindPullDBExt
	KindLTDBHeader
	KindRecData
	KindRecBuffer
	KindTraverseStart
	KindTraverseAll
	KindTraverseStartExt
	KindTraverseAllExt
	KindConnection
	KindTunable
	KindNodeFlagChange
	KindVarList
	KindTunableList
	KindTickleList
	KindAddrInfo
	KindTransDB
	KindUptime
	KindPublicIP
	KindPublicIPList
	KindNodeAndFlags
	KindNodeMap
	KindScript
	KindScriptList
	KindBanState
	KindNotifyData
	KindIface
	KindIfaceList
	KindPublicIPInfo
	KindStatisticsList
	KindKeyData
	KindDBStatistics
	KindElectionMessage
	KindSrvidMessage
	KindDisableMessage
	KindServerID
	KindGLock
	KindGLockList
	KindReqHeader
	KindReqControl
	KindReplyControl
	KindReqMessage

	kindCount
)

type kindInfo struct {
	name     string
	category Category
	new      func() Message
	alloc    func(a *arena.Arena) (Message, error)
}

// kinds declares name, category and constructor of every kind. The category is part of the
// declaration and never derived from the field layout.
var kinds = [kindCount]kindInfo{
	KindLatencyCounter:   entry[LatencyCounter]("latency_counter", CategoryScalar),
	KindStatistics:       entry[Statistics]("statistics", CategoryOwned),
	KindVNNMap:           entry[VNNMap]("vnn_map", CategoryNested),
	KindDBID:             entry[DBID]("dbid", CategoryScalar),
	KindDBIDMap:          entry[DBIDMap]("dbid_map", CategoryNested),
	KindPullDB:           entry[PullDB]("pulldb", CategoryScalar),
	KindPullDBExt:        entry[PullDBExt]("pulldb_ext", CategoryScalar),
	KindLTDBHeader:       entry[LTDBHeader]("ltdb_header", CategoryScalar),
	KindRecData:          entry[RecData]("rec_data", CategoryNested),
	KindRecBuffer:        entry[RecBuffer]("rec_buffer", CategoryNested),
	KindTraverseStart:    entry[TraverseStart]("traverse_start", CategoryScalar),
	KindTraverseAll:      entry[TraverseAll]("traverse_all", CategoryScalar),
	KindTraverseStartExt: entry[TraverseStartExt]("traverse_start_ext", CategoryScalar),
	KindTraverseAllExt:   entry[TraverseAllExt]("traverse_all_ext", CategoryScalar),
	KindConnection:       entry[Connection]("connection", CategoryNested),
	KindTunable:          entry[Tunable]("tunable", CategoryNested),
	KindNodeFlagChange:   entry[NodeFlagChange]("node_flag_change", CategoryScalar),
	KindVarList:          entry[VarList]("var_list", CategoryNested),
	KindTunableList:      entry[TunableList]("tunable_list", CategoryScalar),
	KindTickleList:       entry[TickleList]("tickle_list", CategoryNested),
	KindAddrInfo:         entry[AddrInfo]("addr_info", CategoryNested),
	KindTransDB:          entry[TransDB]("transdb", CategoryScalar),
	KindUptime:           entry[Uptime]("uptime", CategoryScalar),
	KindPublicIP:         entry[PublicIP]("public_ip", CategoryNested),
	KindPublicIPList:     entry[PublicIPList]("public_ip_list", CategoryNested),
	KindNodeAndFlags:     entry[NodeAndFlags]("node_and_flags", CategoryNested),
	KindNodeMap:          entry[NodeMap]("node_map", CategoryNested),
	KindScript:           entry[Script]("script", CategoryNested),
	KindScriptList:       entry[ScriptList]("script_list", CategoryNested),
	KindBanState:         entry[BanState]("ban_state", CategoryScalar),
	KindNotifyData:       entry[NotifyData]("notify_data", CategoryNested),
	KindIface:            entry[Iface]("iface", CategoryNested),
	KindIfaceList:        entry[IfaceList]("iface_list", CategoryNested),
	KindPublicIPInfo:     entry[PublicIPInfo]("public_ip_info", CategoryNested),
	KindStatisticsList:   entry[StatisticsList]("statistics_list", CategoryOwned),
	KindKeyData:          entry[KeyData]("key_data", CategoryNested),
	KindDBStatistics:     entry[DBStatistics]("db_statistics", CategoryOwned),
	KindElectionMessage:  entry[ElectionMessage]("election_message", CategoryScalar),
	KindSrvidMessage:     entry[SrvidMessage]("srvid_message", CategoryScalar),
	KindDisableMessage:   entry[DisableMessage]("disable_message", CategoryScalar),
	KindServerID:         entry[ServerID]("server_id", CategoryScalar),
	KindGLock:            entry[GLock]("g_lock", CategoryScalar),
	KindGLockList:        entry[GLockList]("g_lock_list", CategoryNested),
	KindReqHeader:        entry[ReqHeader]("req_header", CategoryScalar),
	KindReqControl:       entry[ReqControl]("req_control", CategoryNested),
	KindReplyControl:     entry[ReplyControl]("reply_control", CategoryNested),
	KindReqMessage:       entry[ReqMessage]("req_message", CategoryNested),
}

func entry[T any, PT interface {
	*T
	Message
}](name string, category Category) kindInfo {
	return kindInfo{
		name:     name,
		category: category,
		new: func() Message {
			return PT(new(T))
		},
		alloc: func(a *arena.Arena) (Message, error) {
			p, err := arena.NewObject[T](a)
			if err != nil {
				return nil, err
			}
			return PT(p), nil
		},
	}
}

// Kinds returns all valid kinds in declaration order
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// KindByName looks up a kind by its wire name (e.g. "node_map")
func KindByName(name string) (Kind, bool) {
	for k := KindInvalid + 1; k < kindCount; k++ {
		if kinds[k].name == name {
			return k, true
		}
	}
	return KindInvalid, false
}

func (k Kind) info() (*kindInfo, error) {
	if k == KindInvalid || k >= kindCount {
		return nil, unsupported("message kind %d", uint32(k))
	}
	return &kinds[k], nil
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// Category returns the declared codec category of the kind (0 for unknown kinds)
func (k Kind) Category() Category {
	if !k.Valid() {
		return 0
	}
	return kinds[k].category
}

// New returns a fresh zero message of the kind, or nil for unknown kinds
func (k Kind) New() Message {
	if !k.Valid() {
		return nil
	}
	return kinds[k].new()
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
	return kinds[k].name
}
