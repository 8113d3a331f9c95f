package protocol

import (
	"strings"
)

// Tunable is a single named tunable value
type Tunable struct {
	Name  string
	Value uint32
}

func (*Tunable) Kind() Kind { return KindTunable }

func (m *Tunable) fields(l *layout) {
	field(l, &m.Name, String)
	field(l, &m.Value, Uint32)
}

// VarList is a list of variable names
type VarList struct {
	Vars []string
}

var stringListCodec = ListOf(String)

func (*VarList) Kind() Kind { return KindVarList }

func (m *VarList) fields(l *layout) {
	field(l, &m.Vars, stringListCodec)
}

// --------------------------------------------------------------------------
// Tunable List
// --------------------------------------------------------------------------

// TunableList holds every tunable of a node. The wire order is the order of tunableTable.
type TunableList struct {
	MaxRedirectCount           uint32
	SeqnumInterval             uint32
	ControlTimeout             uint32
	TraverseTimeout            uint32
	KeepaliveInterval          uint32
	KeepaliveLimit             uint32
	RecoverTimeout             uint32
	RecoverInterval            uint32
	ElectionTimeout            uint32
	TakeoverTimeout            uint32
	MonitorInterval            uint32
	TickleUpdateInterval       uint32
	EventScriptTimeout         uint32
	MonitorTimeoutCount        uint32
	RecoveryGracePeriod        uint32
	RecoveryBanPeriod          uint32
	DatabaseHashSize           uint32
	DatabaseMaxDead            uint32
	RerecoveryTimeout          uint32
	EnableBans                 uint32
	NoIPFailback               uint32
	VerboseMemoryNames         uint32
	RecdPingTimeout            uint32
	RecdPingFailCount          uint32
	LogLatencyMs               uint32
	RecLockLatencyMs           uint32
	RecoveryDropAllIPs         uint32
	VacuumInterval             uint32
	VacuumMaxRunTime           uint32
	RepackLimit                uint32
	VacuumFastPathCount        uint32
	MaxQueueDropMsg            uint32
	AllowUnhealthyDBRead       uint32
	StatHistoryInterval        uint32
	DeferredAttachTO           uint32
	AllowClientDBAttach        uint32
	FetchCollapse              uint32
	HopcountMakeSticky         uint32
	StickyDuration             uint32
	StickyPindown              uint32
	NoIPTakeover               uint32
	DBRecordCountWarn          uint32
	DBRecordSizeWarn           uint32
	DBSizeWarn                 uint32
	PullDBPreallocation        uint32
	LockProcessesPerDB         uint32
	RecBufferSizeLimit         uint32
	QueueBufferSize            uint32
	IPAllocAlgorithm           uint32
	AllowMixedVersions         uint32
	DeferredRebalanceOnNodeAdd uint32
}

type tunableDef struct {
	name  string
	value uint32
	ref   func(t *TunableList) *uint32
}

// tunableTable declares name, default value and wire position of every tunable
var tunableTable = []tunableDef{
	{"MaxRedirectCount", 3, func(t *TunableList) *uint32 { return &t.MaxRedirectCount }},
	{"SeqnumInterval", 1000, func(t *TunableList) *uint32 { return &t.SeqnumInterval }},
	{"ControlTimeout", 60, func(t *TunableList) *uint32 { return &t.ControlTimeout }},
	{"TraverseTimeout", 20, func(t *TunableList) *uint32 { return &t.TraverseTimeout }},
	{"KeepaliveInterval", 5, func(t *TunableList) *uint32 { return &t.KeepaliveInterval }},
	{"KeepaliveLimit", 5, func(t *TunableList) *uint32 { return &t.KeepaliveLimit }},
	{"RecoverTimeout", 30, func(t *TunableList) *uint32 { return &t.RecoverTimeout }},
	{"RecoverInterval", 1, func(t *TunableList) *uint32 { return &t.RecoverInterval }},
	{"ElectionTimeout", 3, func(t *TunableList) *uint32 { return &t.ElectionTimeout }},
	{"TakeoverTimeout", 9, func(t *TunableList) *uint32 { return &t.TakeoverTimeout }},
	{"MonitorInterval", 15, func(t *TunableList) *uint32 { return &t.MonitorInterval }},
	{"TickleUpdateInterval", 20, func(t *TunableList) *uint32 { return &t.TickleUpdateInterval }},
	{"EventScriptTimeout", 30, func(t *TunableList) *uint32 { return &t.EventScriptTimeout }},
	{"MonitorTimeoutCount", 20, func(t *TunableList) *uint32 { return &t.MonitorTimeoutCount }},
	{"RecoveryGracePeriod", 120, func(t *TunableList) *uint32 { return &t.RecoveryGracePeriod }},
	{"RecoveryBanPeriod", 300, func(t *TunableList) *uint32 { return &t.RecoveryBanPeriod }},
	{"DatabaseHashSize", 100001, func(t *TunableList) *uint32 { return &t.DatabaseHashSize }},
	{"DatabaseMaxDead", 5, func(t *TunableList) *uint32 { return &t.DatabaseMaxDead }},
	{"RerecoveryTimeout", 10, func(t *TunableList) *uint32 { return &t.RerecoveryTimeout }},
	{"EnableBans", 1, func(t *TunableList) *uint32 { return &t.EnableBans }},
	{"NoIPFailback", 0, func(t *TunableList) *uint32 { return &t.NoIPFailback }},
	{"VerboseMemoryNames", 0, func(t *TunableList) *uint32 { return &t.VerboseMemoryNames }},
	{"RecdPingTimeout", 60, func(t *TunableList) *uint32 { return &t.RecdPingTimeout }},
	{"RecdPingFailCount", 10, func(t *TunableList) *uint32 { return &t.RecdPingFailCount }},
	{"LogLatencyMs", 0, func(t *TunableList) *uint32 { return &t.LogLatencyMs }},
	{"RecLockLatencyMs", 1000, func(t *TunableList) *uint32 { return &t.RecLockLatencyMs }},
	{"RecoveryDropAllIPs", 120, func(t *TunableList) *uint32 { return &t.RecoveryDropAllIPs }},
	{"VacuumInterval", 10, func(t *TunableList) *uint32 { return &t.VacuumInterval }},
	{"VacuumMaxRunTime", 120, func(t *TunableList) *uint32 { return &t.VacuumMaxRunTime }},
	{"RepackLimit", 10000, func(t *TunableList) *uint32 { return &t.RepackLimit }},
	{"VacuumFastPathCount", 60, func(t *TunableList) *uint32 { return &t.VacuumFastPathCount }},
	{"MaxQueueDropMsg", 1000000, func(t *TunableList) *uint32 { return &t.MaxQueueDropMsg }},
	{"AllowUnhealthyDBRead", 0, func(t *TunableList) *uint32 { return &t.AllowUnhealthyDBRead }},
	{"StatHistoryInterval", 1, func(t *TunableList) *uint32 { return &t.StatHistoryInterval }},
	{"DeferredAttachTO", 120, func(t *TunableList) *uint32 { return &t.DeferredAttachTO }},
	{"AllowClientDBAttach", 1, func(t *TunableList) *uint32 { return &t.AllowClientDBAttach }},
	{"FetchCollapse", 1, func(t *TunableList) *uint32 { return &t.FetchCollapse }},
	{"HopcountMakeSticky", 50, func(t *TunableList) *uint32 { return &t.HopcountMakeSticky }},
	{"StickyDuration", 600, func(t *TunableList) *uint32 { return &t.StickyDuration }},
	{"StickyPindown", 200, func(t *TunableList) *uint32 { return &t.StickyPindown }},
	{"NoIPTakeover", 0, func(t *TunableList) *uint32 { return &t.NoIPTakeover }},
	{"DBRecordCountWarn", 100000, func(t *TunableList) *uint32 { return &t.DBRecordCountWarn }},
	{"DBRecordSizeWarn", 10000000, func(t *TunableList) *uint32 { return &t.DBRecordSizeWarn }},
	{"DBSizeWarn", 100000000, func(t *TunableList) *uint32 { return &t.DBSizeWarn }},
	{"PullDBPreallocation", 10 * 1024 * 1024, func(t *TunableList) *uint32 { return &t.PullDBPreallocation }},
	{"LockProcessesPerDB", 200, func(t *TunableList) *uint32 { return &t.LockProcessesPerDB }},
	{"RecBufferSizeLimit", 1000000, func(t *TunableList) *uint32 { return &t.RecBufferSizeLimit }},
	{"QueueBufferSize", 1024, func(t *TunableList) *uint32 { return &t.QueueBufferSize }},
	{"IPAllocAlgorithm", 2, func(t *TunableList) *uint32 { return &t.IPAllocAlgorithm }},
	{"AllowMixedVersions", 0, func(t *TunableList) *uint32 { return &t.AllowMixedVersions }},
	{"DeferredRebalanceOnNodeAdd", 300, func(t *TunableList) *uint32 { return &t.DeferredRebalanceOnNodeAdd }},
}

func (*TunableList) Kind() Kind { return KindTunableList }

func (m *TunableList) fields(l *layout) {
	for i := range tunableTable {
		field(l, tunableTable[i].ref(m), Uint32)
	}
}

// DefaultTunables returns a list with every tunable at its default value
func DefaultTunables() TunableList {
	var t TunableList
	for _, def := range tunableTable {
		*def.ref(&t) = def.value
	}
	return t
}

// TunableNames returns the names of all tunables in wire order
func TunableNames() []string {
	names := make([]string, len(tunableTable))
	for i, def := range tunableTable {
		names[i] = def.name
	}
	return names
}

// lookupTunable finds a tunable by name, ignoring case
func lookupTunable(name string) *tunableDef {
	for i := range tunableTable {
		if strings.EqualFold(tunableTable[i].name, name) {
			return &tunableTable[i]
		}
	}
	return nil
}

// CanonicalTunableName returns the declared spelling of a tunable name
func CanonicalTunableName(name string) (string, bool) {
	def := lookupTunable(name)
	if def == nil {
		return "", false
	}
	return def.name, true
}

// Get returns the value of the named tunable (case insensitive)
func (m *TunableList) Get(name string) (uint32, bool) {
	def := lookupTunable(name)
	if def == nil {
		return 0, false
	}
	return *def.ref(m), true
}

// Set updates the named tunable (case insensitive). It returns false for unknown names.
func (m *TunableList) Set(name string, value uint32) bool {
	def := lookupTunable(name)
	if def == nil {
		return false
	}
	*def.ref(m) = value
	return true
}

// Tunables returns all tunables as name/value pairs in wire order
func (m *TunableList) Tunables() []Tunable {
	out := make([]Tunable, len(tunableTable))
	for i, def := range tunableTable {
		out[i] = Tunable{Name: def.name, Value: *def.ref(m)}
	}
	return out
}
