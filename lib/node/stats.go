package node

import (
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Lock Statistics
// --------------------------------------------------------------------------

// lockStats collects lock usage of a database. Every update is applied to the
// parent as well, which holds the totals of the node.
type lockStats struct {
	calls   gometrics.Counter
	current gometrics.Counter
	pending gometrics.Counter
	failed  gometrics.Counter
	latency gometrics.Timer
	buckets *CountHistogram
	parent  *lockStats
}

// newLockStats registers the lock metrics under prefix
func newLockStats(r gometrics.Registry, prefix string, parent *lockStats) *lockStats {
	return &lockStats{
		calls:   gometrics.GetOrRegisterCounter(prefix+".calls", r),
		current: gometrics.GetOrRegisterCounter(prefix+".current", r),
		pending: gometrics.GetOrRegisterCounter(prefix+".pending", r),
		failed:  gometrics.GetOrRegisterCounter(prefix+".failed", r),
		latency: gometrics.GetOrRegisterTimer(prefix+".latency", r),
		buckets: NewCountHistogram(),
		parent:  parent,
	}
}

func (s *lockStats) each(f func(s *lockStats)) {
	for ; s != nil; s = s.parent {
		f(s)
	}
}

// lock acquires mu and records how long the caller waited. The returned function releases mu.
func (s *lockStats) lock(mu *sync.Mutex) (unlock func()) {
	s.each(func(s *lockStats) {
		s.calls.Inc(1)
		s.pending.Inc(1)
	})

	start := time.Now()
	mu.Lock()
	wait := time.Since(start)

	s.each(func(s *lockStats) {
		s.pending.Dec(1)
		s.current.Inc(1)
		s.latency.Update(wait)
		s.buckets.AddSample(uint64(wait / time.Microsecond))
	})

	return func() {
		s.each(func(s *lockStats) { s.current.Dec(1) })
		mu.Unlock()
	}
}

// fail counts a lock that was taken but whose operation failed
func (s *lockStats) fail() {
	s.each(func(s *lockStats) { s.failed.Inc(1) })
}

// snapshot converts the lock metrics to their wire form
func (s *lockStats) snapshot() protocol.LockStatistics {
	return protocol.LockStatistics{
		NumCalls:   counter32(s.calls),
		NumCurrent: counter32(s.current),
		NumPending: counter32(s.pending),
		NumFailed:  counter32(s.failed),
		Latency:    latencyOf(s.latency),
		Buckets:    s.buckets.Buckets(),
	}
}

// --------------------------------------------------------------------------
// Node Statistics
// --------------------------------------------------------------------------

// Stats collects the statistics of one node in a go-metrics registry.
// The control server records every packet and control, Snapshot converts the
// registry into the wire statistics.
type Stats struct {
	registry  gometrics.Registry
	startTime time.Time
	clients   *xsync.MapOf[uint32, time.Time]

	clientPacketsRecv gometrics.Counter
	clientPacketsSent gometrics.Counter
	reqControl        gometrics.Counter
	replyControl      gometrics.Counter
	replyError        gometrics.Counter
	reqMessage        gometrics.Counter
	controlTimeouts   gometrics.Counter
	traverseTimeouts  gometrics.Counter
	pendingCalls      gometrics.Counter
	totalCalls        gometrics.Counter
	numRecoveries     gometrics.Counter
	callLatency       gometrics.Timer
	locks             *lockStats
}

// NewStats creates the statistics of a node started at startTime
func NewStats(startTime time.Time) *Stats {
	r := gometrics.NewRegistry()
	return &Stats{
		registry:          r,
		startTime:         startTime,
		clients:           xsync.NewMapOf[uint32, time.Time](),
		clientPacketsRecv: gometrics.GetOrRegisterCounter("client.packets_recv", r),
		clientPacketsSent: gometrics.GetOrRegisterCounter("client.packets_sent", r),
		reqControl:        gometrics.GetOrRegisterCounter("client.req_control", r),
		replyControl:      gometrics.GetOrRegisterCounter("node.reply_control", r),
		replyError:        gometrics.GetOrRegisterCounter("node.reply_error", r),
		reqMessage:        gometrics.GetOrRegisterCounter("client.req_message", r),
		controlTimeouts:   gometrics.GetOrRegisterCounter("timeouts.control", r),
		traverseTimeouts:  gometrics.GetOrRegisterCounter("timeouts.traverse", r),
		pendingCalls:      gometrics.GetOrRegisterCounter("calls.pending", r),
		totalCalls:        gometrics.GetOrRegisterCounter("calls.total", r),
		numRecoveries:     gometrics.GetOrRegisterCounter("recoveries", r),
		callLatency:       gometrics.GetOrRegisterTimer("calls.latency", r),
		locks:             newLockStats(r, "locks", nil),
	}
}

// Registry exposes the underlying registry
func (s *Stats) Registry() gometrics.Registry {
	return s.registry
}

// PacketReceived counts an incoming packet
func (s *Stats) PacketReceived() {
	s.clientPacketsRecv.Inc(1)
}

// MessageReceived counts a message to a registered server id
func (s *Stats) MessageReceived() {
	s.clientPacketsRecv.Inc(1)
	s.reqMessage.Inc(1)
}

// ControlStarted counts a control request of clientID. The returned function must be
// called once the control is done, with its reply status.
func (s *Stats) ControlStarted(clientID uint32) (done func(status int32)) {
	s.clients.Store(clientID, time.Now())
	s.reqControl.Inc(1)
	s.totalCalls.Inc(1)
	s.pendingCalls.Inc(1)
	start := time.Now()

	return func(status int32) {
		s.pendingCalls.Dec(1)
		s.callLatency.UpdateSince(start)
		s.replyControl.Inc(1)
		s.clientPacketsSent.Inc(1)
		if status != 0 {
			s.replyError.Inc(1)
		}
	}
}

// ControlTimedOut counts a control that did not finish in time
func (s *Stats) ControlTimedOut() {
	s.controlTimeouts.Inc(1)
}

// RecoveryDone counts a completed recovery
func (s *Stats) RecoveryDone() {
	s.numRecoveries.Inc(1)
}

// NumClients returns the number of distinct clients seen so far
func (s *Stats) NumClients() int {
	return s.clients.Size()
}

// Snapshot converts the registry into the wire statistics of the node
func (s *Stats) Snapshot() protocol.Statistics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return protocol.Statistics{
		NumClients:        uint32(s.clients.Size()),
		ClientPacketsSent: counter32(s.clientPacketsSent),
		ClientPacketsRecv: counter32(s.clientPacketsRecv),
		Node: protocol.NodeCounters{
			ReqControl:   counter32(s.reqControl),
			ReplyControl: counter32(s.replyControl),
			ReplyError:   counter32(s.replyError),
			ReqMessage:   counter32(s.reqMessage),
		},
		Client: protocol.ClientCounters{
			ReqControl: counter32(s.reqControl),
			ReqMessage: counter32(s.reqMessage),
		},
		Timeouts: protocol.TimeoutCounters{
			Control:  counter32(s.controlTimeouts),
			Traverse: counter32(s.traverseTimeouts),
		},
		Locks:         s.locks.snapshot(),
		TotalCalls:    counter32(s.totalCalls),
		PendingCalls:  counter32(s.pendingCalls),
		MemoryUsed:    uint32(min(mem.HeapAlloc, math.MaxUint32)),
		CallLatency:   latencyOf(s.callLatency),
		NumRecoveries: counter32(s.numRecoveries),
		StartTime:     protocol.TimevalOf(s.startTime),
		CurrentTime:   protocol.TimevalOf(time.Now()),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// counter32 clamps a counter to the u32 range of the wire statistics
func counter32(c gometrics.Counter) uint32 {
	return uint32(min(max(c.Count(), 0), math.MaxUint32))
}

// latencyOf converts a timer into a latency counter in seconds
func latencyOf(t gometrics.Timer) protocol.LatencyCounter {
	snap := t.Snapshot()
	count := snap.Count()
	if count == 0 {
		return protocol.LatencyCounter{}
	}
	return protocol.LatencyCounter{
		Num:   int32(min(count, math.MaxInt32)),
		Min:   time.Duration(snap.Min()).Seconds(),
		Max:   time.Duration(snap.Max()).Seconds(),
		Total: snap.Mean() * float64(count) / float64(time.Second),
	}
}
