package protocol

// MaxCountBuckets is the number of buckets of the hop count and lock wait histograms
const MaxCountBuckets = 16

// MaxHotKeys is the number of hot keys a database tracks
const MaxHotKeys = 10

// --------------------------------------------------------------------------
// Latency Counter
// --------------------------------------------------------------------------

// LatencyCounter aggregates durations in seconds
type LatencyCounter struct {
	Num   int32
	Min   float64
	Max   float64
	Total float64
}

func (*LatencyCounter) Kind() Kind { return KindLatencyCounter }

func (m *LatencyCounter) fields(l *layout) {
	field(l, &m.Num, Int32)
	field(l, &m.Min, Float64)
	field(l, &m.Max, Float64)
	field(l, &m.Total, Float64)
}

// Observe adds one sample
func (m *LatencyCounter) Observe(seconds float64) {
	if m.Num == 0 || seconds < m.Min {
		m.Min = seconds
	}
	if seconds > m.Max {
		m.Max = seconds
	}
	m.Num++
	m.Total += seconds
}

// Avg returns the mean latency, 0 if there are no samples
func (m *LatencyCounter) Avg() float64 {
	if m.Num == 0 {
		return 0
	}
	return m.Total / float64(m.Num)
}

// --------------------------------------------------------------------------
// Node Statistics
// --------------------------------------------------------------------------

// NodeCounters counts packets exchanged with other nodes
type NodeCounters struct {
	ReqCall      uint32
	ReplyCall    uint32
	ReqDMaster   uint32
	ReplyDMaster uint32
	ReplyError   uint32
	ReqMessage   uint32
	ReqControl   uint32
	ReplyControl uint32
	ReqTunnel    uint32
}

func (m *NodeCounters) fields(l *layout) {
	field(l, &m.ReqCall, Uint32)
	field(l, &m.ReplyCall, Uint32)
	field(l, &m.ReqDMaster, Uint32)
	field(l, &m.ReplyDMaster, Uint32)
	field(l, &m.ReplyError, Uint32)
	field(l, &m.ReqMessage, Uint32)
	field(l, &m.ReqControl, Uint32)
	field(l, &m.ReplyControl, Uint32)
	field(l, &m.ReqTunnel, Uint32)
}

// ClientCounters counts requests received from local clients
type ClientCounters struct {
	ReqCall    uint32
	ReqMessage uint32
	ReqControl uint32
	ReqTunnel  uint32
}

func (m *ClientCounters) fields(l *layout) {
	field(l, &m.ReqCall, Uint32)
	field(l, &m.ReqMessage, Uint32)
	field(l, &m.ReqControl, Uint32)
	field(l, &m.ReqTunnel, Uint32)
}

// TimeoutCounters counts timed out operations
type TimeoutCounters struct {
	Call     uint32
	Control  uint32
	Traverse uint32
}

func (m *TimeoutCounters) fields(l *layout) {
	field(l, &m.Call, Uint32)
	field(l, &m.Control, Uint32)
	field(l, &m.Traverse, Uint32)
}

// ReclockLatency holds the recovery lock latencies of the daemon and the recovery process
type ReclockLatency struct {
	Ctdbd LatencyCounter
	Recd  LatencyCounter
}

func (m *ReclockLatency) fields(l *layout) {
	m.Ctdbd.fields(l)
	m.Recd.fields(l)
}

// LockStatistics describes record lock activity
type LockStatistics struct {
	NumCalls   uint32
	NumCurrent uint32
	NumPending uint32
	NumFailed  uint32
	Latency    LatencyCounter
	Buckets    [MaxCountBuckets]uint32
}

func (m *LockStatistics) fields(l *layout) {
	field(l, &m.NumCalls, Uint32)
	field(l, &m.NumCurrent, Uint32)
	field(l, &m.NumPending, Uint32)
	field(l, &m.NumFailed, Uint32)
	m.Latency.fields(l)
	for i := range m.Buckets {
		field(l, &m.Buckets[i], Uint32)
	}
}

// Statistics is the statistics snapshot of one node
type Statistics struct {
	NumClients             uint32
	Frozen                 uint32
	Recovering             uint32
	ClientPacketsSent      uint32
	ClientPacketsRecv      uint32
	NodePacketsSent        uint32
	NodePacketsRecv        uint32
	KeepalivePacketsSent   uint32
	KeepalivePacketsRecv   uint32
	Node                   NodeCounters
	Client                 ClientCounters
	Timeouts               TimeoutCounters
	Reclock                ReclockLatency
	Locks                  LockStatistics
	TotalCalls             uint32
	PendingCalls           uint32
	ChildwriteCalls        uint32
	PendingChildwriteCalls uint32
	MemoryUsed             uint32
	MaxHopCount            uint32
	HopCountBucket         [MaxCountBuckets]uint32
	CallLatency            LatencyCounter
	ChildwriteLatency      LatencyCounter
	NumRecoveries          uint32
	StartTime              Timeval
	CurrentTime            Timeval
	TotalRODelegations     uint32
	TotalRORevokes         uint32
}

func (*Statistics) Kind() Kind { return KindStatistics }

func (m *Statistics) fields(l *layout) {
	field(l, &m.NumClients, Uint32)
	field(l, &m.Frozen, Uint32)
	field(l, &m.Recovering, Uint32)
	field(l, &m.ClientPacketsSent, Uint32)
	field(l, &m.ClientPacketsRecv, Uint32)
	field(l, &m.NodePacketsSent, Uint32)
	field(l, &m.NodePacketsRecv, Uint32)
	field(l, &m.KeepalivePacketsSent, Uint32)
	field(l, &m.KeepalivePacketsRecv, Uint32)
	m.Node.fields(l)
	m.Client.fields(l)
	m.Timeouts.fields(l)
	m.Reclock.fields(l)
	m.Locks.fields(l)
	field(l, &m.TotalCalls, Uint32)
	field(l, &m.PendingCalls, Uint32)
	field(l, &m.ChildwriteCalls, Uint32)
	field(l, &m.PendingChildwriteCalls, Uint32)
	field(l, &m.MemoryUsed, Uint32)
	field(l, &m.MaxHopCount, Uint32)
	for i := range m.HopCountBucket {
		field(l, &m.HopCountBucket[i], Uint32)
	}
	m.CallLatency.fields(l)
	m.ChildwriteLatency.fields(l)
	field(l, &m.NumRecoveries, Uint32)
	field(l, &m.StartTime, TimevalCodec)
	field(l, &m.CurrentTime, TimevalCodec)
	field(l, &m.TotalRODelegations, Uint32)
	field(l, &m.TotalRORevokes, Uint32)
}

// StatisticsList is the statistics history of a node, oldest first
type StatisticsList struct {
	Stats []Statistics
}

var statisticsListCodec = ListOf(structOf[Statistics]())

func (*StatisticsList) Kind() Kind { return KindStatisticsList }

func (m *StatisticsList) fields(l *layout) {
	field(l, &m.Stats, statisticsListCodec)
}

// --------------------------------------------------------------------------
// Database Statistics
// --------------------------------------------------------------------------

// HotKey is a frequently migrated record key
type HotKey struct {
	Count uint32
	Key   []byte
}

func (m *HotKey) fields(l *layout) {
	field(l, &m.Count, Uint32)
	field(l, &m.Key, Blob)
}

var hotKeyListCodec = ListOf(structOf[HotKey]())

// VacuumStatistics describes vacuuming runs of a database
type VacuumStatistics struct {
	Latency LatencyCounter
}

func (m *VacuumStatistics) fields(l *layout) {
	m.Latency.fields(l)
}

// DBStatistics is the statistics snapshot of one database
type DBStatistics struct {
	Locks           LockStatistics
	Vacuum          VacuumStatistics
	DBRODelegations uint32
	DBRORevokes     uint32
	HopCountBucket  [MaxCountBuckets]uint32
	HotKeys         []HotKey
}

func (*DBStatistics) Kind() Kind { return KindDBStatistics }

func (m *DBStatistics) fields(l *layout) {
	m.Locks.fields(l)
	m.Vacuum.fields(l)
	field(l, &m.DBRODelegations, Uint32)
	field(l, &m.DBRORevokes, Uint32)
	for i := range m.HopCountBucket {
		field(l, &m.HopCountBucket[i], Uint32)
	}
	field(l, &m.HotKeys, hotKeyListCodec)
}
