package node

import (
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
)

// TestCountHistogram tests bucket assignment and the derived values of the histogram
func TestCountHistogram(t *testing.T) {
	h := NewCountHistogram()

	for _, v := range []uint64{0, 1, 2, 3, 4, 1000, 1 << 40} {
		h.AddSample(v)
	}

	buckets := h.Buckets()
	want := map[int]uint32{0: 1, 1: 1, 2: 2, 3: 1, 10: 1, protocol.MaxCountBuckets - 1: 1}
	for i, count := range buckets {
		if count != want[i] {
			t.Errorf("bucket %d holds %d samples, want %d", i, count, want[i])
		}
	}

	if h.Count() != 7 {
		t.Errorf("Count() = %d, want 7", h.Count())
	}
	if h.Max() != 1<<40 {
		t.Errorf("Max() = %d, want %d", h.Max(), uint64(1)<<40)
	}
	if got := h.PercentileEstimate(50); got != 4 {
		t.Errorf("PercentileEstimate(50) = %d, want 4", got)
	}
	if got := h.PercentileEstimate(100); got != 1<<40 {
		t.Errorf("PercentileEstimate(100) = %d, want the maximum", got)
	}
	if avg := h.Average(); avg <= 0 {
		t.Errorf("Average() = %f, want > 0", avg)
	}

	h.Reset()
	if h.Count() != 0 || h.Buckets() != ([protocol.MaxCountBuckets]uint32{}) {
		t.Error("Reset() did not clear the histogram")
	}
}

// TestHotKeys tests that only the hottest keys are kept
func TestHotKeys(t *testing.T) {
	h := newHotKeys(3)

	h.Observe([]byte("a"), 1)
	h.Observe([]byte("b"), 5)
	h.Observe([]byte("c"), 3)
	h.Observe([]byte("d"), 2) // replaces a
	h.Observe([]byte("e"), 1) // colder than every tracked key
	h.Observe([]byte("c"), 7) // update in place

	snap := h.Snapshot()
	var got []string
	for _, k := range snap {
		got = append(got, string(k.Key))
	}
	want := []string{"c", "b", "d"}
	if len(got) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", got, want)
		}
	}

	h.Remove([]byte("b"))
	if h.Len() != 2 {
		t.Errorf("Len() = %d after Remove, want 2", h.Len())
	}

	disabled := newHotKeys(0)
	disabled.Observe([]byte("x"), 1)
	if disabled.Len() != 0 {
		t.Error("tracker with limit 0 should not track keys")
	}
}

// TestStatsSnapshot tests that recorded controls show up in the wire statistics
func TestStatsSnapshot(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	s := NewStats(start)

	s.PacketReceived()
	s.ControlStarted(1)(0)
	s.ControlStarted(2)(-1)
	s.MessageReceived()
	s.ControlTimedOut()

	snap := s.Snapshot()
	if snap.NumClients != 2 {
		t.Errorf("NumClients = %d, want 2", snap.NumClients)
	}
	if snap.Client.ReqControl != 2 || snap.Node.ReplyControl != 2 {
		t.Errorf("control counters req %d reply %d, want 2/2", snap.Client.ReqControl, snap.Node.ReplyControl)
	}
	if snap.Node.ReplyError != 1 {
		t.Errorf("ReplyError = %d, want 1", snap.Node.ReplyError)
	}
	if snap.Client.ReqMessage != 1 || snap.ClientPacketsRecv != 2 {
		t.Errorf("message counters req %d recv %d", snap.Client.ReqMessage, snap.ClientPacketsRecv)
	}
	if snap.Timeouts.Control != 1 {
		t.Errorf("control timeouts = %d, want 1", snap.Timeouts.Control)
	}
	if snap.PendingCalls != 0 || snap.TotalCalls != 2 {
		t.Errorf("calls pending %d total %d, want 0/2", snap.PendingCalls, snap.TotalCalls)
	}
	if snap.CallLatency.Num != 2 || snap.CallLatency.Max < snap.CallLatency.Min {
		t.Errorf("unexpected call latency %+v", snap.CallLatency)
	}
	if snap.StartTime != protocol.TimevalOf(start) {
		t.Errorf("StartTime = %+v, want %+v", snap.StartTime, protocol.TimevalOf(start))
	}
	if snap.MemoryUsed == 0 {
		t.Error("MemoryUsed not filled in")
	}
}

// TestLockStats tests that database lock statistics roll up into the node totals
func TestLockStats(t *testing.T) {
	s := NewStats(time.Now())
	dbLocks := newLockStats(s.Registry(), "db.test.locks", s.locks)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := dbLocks.lock(&mu)
			time.Sleep(time.Millisecond)
			unlock()
		}()
	}
	wg.Wait()
	dbLocks.fail()

	for name, snap := range map[string]protocol.LockStatistics{"db": dbLocks.snapshot(), "node": s.locks.snapshot()} {
		if snap.NumCalls != 10 {
			t.Errorf("%s: NumCalls = %d, want 10", name, snap.NumCalls)
		}
		if snap.NumCurrent != 0 || snap.NumPending != 0 {
			t.Errorf("%s: current %d pending %d after all locks were released", name, snap.NumCurrent, snap.NumPending)
		}
		if snap.NumFailed != 1 {
			t.Errorf("%s: NumFailed = %d, want 1", name, snap.NumFailed)
		}
		var samples uint32
		for _, b := range snap.Buckets {
			samples += b
		}
		if samples != 10 || snap.Latency.Num != 10 {
			t.Errorf("%s: %d bucket samples and %d latency samples, want 10", name, samples, snap.Latency.Num)
		}
	}
}

// TestDatabaseID tests that database ids are stable hashes of the name
func TestDatabaseID(t *testing.T) {
	if DatabaseID("locking.tdb") != DatabaseID("locking.tdb") {
		t.Error("DatabaseID is not deterministic")
	}
	if DatabaseID("a.tdb") == DatabaseID("b.tdb") {
		t.Error("different names should produce different ids")
	}
	// FNV-1a of the empty input is the offset basis
	if DatabaseID("") != 2166136261 {
		t.Errorf("DatabaseID(\"\") = %d", DatabaseID(""))
	}
}
