package node

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

// newTestNode creates a node with three cluster nodes and one database named "test.tdb"
func newTestNode(t *testing.T, pnn uint32) INode {
	t.Helper()

	var nodes []protocol.SockAddr
	for _, s := range []string{"10.0.0.1:4379", "10.0.0.2:4379", "10.0.0.3:4379"} {
		addr, err := protocol.ParseSockAddr(s)
		if err != nil {
			t.Fatalf("ParseSockAddr(%q) failed: %v", s, err)
		}
		nodes = append(nodes, addr)
	}

	var ips []PublicAddress
	for _, s := range []string{"192.168.1.10/24@eth0", "192.168.1.11/24@eth0", "192.168.2.10/24@eth1"} {
		ip, err := ParsePublicAddress(s)
		if err != nil {
			t.Fatalf("ParsePublicAddress(%q) failed: %v", s, err)
		}
		ips = append(ips, ip)
	}

	n, err := NewNode(Config{
		PNN:       pnn,
		Nodes:     nodes,
		PublicIPs: ips,
		Databases: []DatabaseConfig{{Name: "test.tdb"}},
	})
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n
}

// testRecord builds a pushed record value with the given rsn and dmaster
func testRecord(key, data string, rsn uint64, dmaster uint32) protocol.Record {
	h := protocol.LTDBHeader{RSN: rsn, DMaster: dmaster}
	return protocol.Record{Key: []byte(key), Value: protocol.JoinLTDBRecord(&h, []byte(data))}
}

// TestConfigValidate tests the consistency checks of the node config
func TestConfigValidate(t *testing.T) {
	addr, _ := protocol.ParseSockAddr("10.0.0.1:4379")

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{PNN: 0, Nodes: []protocol.SockAddr{addr}}, false},
		{"no nodes", Config{}, true},
		{"pnn out of range", Config{PNN: 1, Nodes: []protocol.SockAddr{addr}}, true},
		{"empty database name", Config{Nodes: []protocol.SockAddr{addr}, Databases: []DatabaseConfig{{}}}, true},
		{"duplicate database", Config{Nodes: []protocol.SockAddr{addr}, Databases: []DatabaseConfig{{Name: "a"}, {Name: "a"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestParseConfigValues tests parsing of public addresses and database definitions
func TestParseConfigValues(t *testing.T) {
	ip, err := ParsePublicAddress("10.1.2.3/16@bond0")
	if err != nil {
		t.Fatalf("ParsePublicAddress failed: %v", err)
	}
	if ip.Addr.String() != "10.1.2.3:0" || ip.Mask != 16 || ip.Iface != "bond0" {
		t.Errorf("unexpected public address %s/%d@%s", ip.Addr, ip.Mask, ip.Iface)
	}

	for _, bad := range []string{"10.1.2.3/16", "10.1.2.3@eth0", "nonsense/8@eth0"} {
		if _, err := ParsePublicAddress(bad); err == nil {
			t.Errorf("ParsePublicAddress(%q) should fail", bad)
		}
	}

	dbTests := []struct {
		in      string
		want    DatabaseConfig
		wantErr bool
	}{
		{"locking.tdb", DatabaseConfig{Name: "locking.tdb"}, false},
		{"secrets.tdb:persistent", DatabaseConfig{Name: "secrets.tdb", Flags: protocol.DBFlagPersistent}, false},
		{"r.tdb:replicated+sticky", DatabaseConfig{Name: "r.tdb", Flags: protocol.DBFlagReplicated | protocol.DBFlagSticky}, false},
		{":persistent", DatabaseConfig{}, true},
		{"x.tdb:volatile", DatabaseConfig{}, true},
	}
	for _, tt := range dbTests {
		got, err := ParseDatabase(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDatabase(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDatabase(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

// TestNodeMaps tests node map and vnn map of a fresh node
func TestNodeMaps(t *testing.T) {
	n := newTestNode(t, 1)

	if n.PNN() != 1 {
		t.Errorf("PNN() = %d, want 1", n.PNN())
	}

	nodeMap := n.NodeMap()
	if len(nodeMap.Nodes) != 3 {
		t.Fatalf("node map has %d nodes, want 3", len(nodeMap.Nodes))
	}
	for i, nf := range nodeMap.Nodes {
		if nf.PNN != uint32(i) || nf.Flags != 0 {
			t.Errorf("node %d: got pnn %d flags 0x%x", i, nf.PNN, nf.Flags)
		}
	}

	vnnMap := n.VNNMap()
	if diff := cmp.Diff([]uint32{0, 1, 2}, vnnMap.Map); diff != "" {
		t.Errorf("vnn map mismatch (-want +got):\n%s", diff)
	}
}

// TestAttachDB tests attaching databases and the database map
func TestAttachDB(t *testing.T) {
	n := newTestNode(t, 0)

	id, err := n.AttachDB("second.tdb", protocol.DBFlagPersistent)
	if err != nil {
		t.Fatalf("AttachDB failed: %v", err)
	}
	if id != DatabaseID("second.tdb") {
		t.Errorf("AttachDB returned id 0x%08x, want 0x%08x", id, DatabaseID("second.tdb"))
	}

	// attaching twice returns the same id
	again, err := n.AttachDB("second.tdb", protocol.DBFlagPersistent)
	if err != nil || again != id {
		t.Errorf("second AttachDB = 0x%08x, %v", again, err)
	}

	if _, err := n.AttachDB("", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AttachDB(\"\") error = %v, want ErrInvalidArgument", err)
	}

	dbMap := n.DBMap()
	if len(dbMap.DBs) != 2 {
		t.Fatalf("db map has %d entries, want 2", len(dbMap.DBs))
	}
	if dbMap.DBs[0].DBID > dbMap.DBs[1].DBID {
		t.Errorf("db map not sorted: %v", dbMap.DBs)
	}
}

// TestPushPull tests that pushed records are pulled back with their headers
func TestPushPull(t *testing.T) {
	n := newTestNode(t, 0)
	dbID := DatabaseID("test.tdb")

	applied, err := n.PushDB(&protocol.RecBuffer{DBID: dbID, Records: []protocol.Record{
		testRecord("k2", "v2", 1, 0),
		testRecord("k1", "v1", 1, 0),
		testRecord("k3", "", 1, 0),
	}})
	if err != nil {
		t.Fatalf("PushDB failed: %v", err)
	}
	if applied != 3 {
		t.Errorf("PushDB applied %d records, want 3", applied)
	}

	buf, err := n.PullDB(protocol.PullDB{DBID: dbID, LMaster: protocol.LMasterAny})
	if err != nil {
		t.Fatalf("PullDB failed: %v", err)
	}
	want := []protocol.Record{testRecord("k1", "v1", 1, 0), testRecord("k2", "v2", 1, 0), testRecord("k3", "", 1, 0)}
	if diff := cmp.Diff(want, buf.Records); diff != "" {
		t.Errorf("pulled records mismatch (-want +got):\n%s", diff)
	}

	// traversal skips the empty record unless asked for it
	trav, err := n.Traverse(dbID, false)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if len(trav.Records) != 2 {
		t.Errorf("Traverse(withEmpty=false) returned %d records, want 2", len(trav.Records))
	}
	trav, _ = n.Traverse(dbID, true)
	if len(trav.Records) != 3 {
		t.Errorf("Traverse(withEmpty=true) returned %d records, want 3", len(trav.Records))
	}
}

// TestPullByLMaster tests that the location master filter partitions the records
func TestPullByLMaster(t *testing.T) {
	n := newTestNode(t, 0)
	dbID := DatabaseID("test.tdb")

	var records []protocol.Record
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		records = append(records, testRecord(k, "x", 1, 0))
	}
	if _, err := n.PushDB(&protocol.RecBuffer{DBID: dbID, Records: records}); err != nil {
		t.Fatalf("PushDB failed: %v", err)
	}

	total := 0
	for _, lmaster := range n.VNNMap().Map {
		buf, err := n.PullDB(protocol.PullDB{DBID: dbID, LMaster: lmaster})
		if err != nil {
			t.Fatalf("PullDB(lmaster %d) failed: %v", lmaster, err)
		}
		total += len(buf.Records)
	}
	if total != len(records) {
		t.Errorf("lmaster partitions hold %d records, want %d", total, len(records))
	}
}

// TestPushRSN tests that only records with a higher rsn replace stored ones
func TestPushRSN(t *testing.T) {
	n := newTestNode(t, 0)
	dbID := DatabaseID("test.tdb")

	push := func(recs ...protocol.Record) int {
		t.Helper()
		applied, err := n.PushDB(&protocol.RecBuffer{DBID: dbID, Records: recs})
		if err != nil {
			t.Fatalf("PushDB failed: %v", err)
		}
		return applied
	}

	push(testRecord("key", "v5", 5, 0))
	if got := push(testRecord("key", "old", 4, 1)); got != 0 {
		t.Errorf("lower rsn applied %d records, want 0", got)
	}
	if got := push(testRecord("key", "same", 5, 1)); got != 0 {
		t.Errorf("equal rsn applied %d records, want 0", got)
	}
	if got := push(testRecord("key", "v6", 6, 1)); got != 1 {
		t.Errorf("higher rsn applied %d records, want 1", got)
	}

	buf, _ := n.PullDB(protocol.PullDB{DBID: dbID, LMaster: protocol.LMasterAny})
	h, data, err := protocol.SplitLTDBRecord(buf.Records[0].Value)
	if err != nil {
		t.Fatalf("SplitLTDBRecord failed: %v", err)
	}
	if h.RSN != 6 || h.DMaster != 1 || string(data) != "v6" {
		t.Errorf("stored record rsn %d dmaster %d data %q", h.RSN, h.DMaster, data)
	}

	// the dmaster change was counted as one hop and made the key hot
	stats, err := n.DBStatistics(dbID)
	if err != nil {
		t.Fatalf("DBStatistics failed: %v", err)
	}
	if stats.HopCountBucket[1] != 1 {
		t.Errorf("hop count buckets = %v, want one sample in bucket 1", stats.HopCountBucket)
	}
	if len(stats.HotKeys) != 1 || string(stats.HotKeys[0].Key) != "key" || stats.HotKeys[0].Count != 1 {
		t.Errorf("unexpected hot keys %v", stats.HotKeys)
	}
	if stats.Locks.NumCalls == 0 {
		t.Error("database lock calls were not counted")
	}

	if nodeStats := n.Statistics(); nodeStats.MaxHopCount != 1 {
		t.Errorf("node MaxHopCount = %d, want 1", nodeStats.MaxHopCount)
	}
}

// TestPushInvalid tests that an invalid batch is rejected as a whole
func TestPushInvalid(t *testing.T) {
	n := newTestNode(t, 0)
	dbID := DatabaseID("test.tdb")

	_, err := n.PushDB(&protocol.RecBuffer{DBID: dbID, Records: []protocol.Record{
		testRecord("good", "v", 1, 0),
		{Key: []byte("short"), Value: []byte{1, 2, 3}},
	}})
	if !errors.Is(err, protocol.ErrTruncatedInput) {
		t.Fatalf("PushDB error = %v, want ErrTruncatedInput", err)
	}

	buf, _ := n.PullDB(protocol.PullDB{DBID: dbID, LMaster: protocol.LMasterAny})
	if len(buf.Records) != 0 {
		t.Errorf("rejected batch left %d records", len(buf.Records))
	}

	if _, err := n.PushDB(&protocol.RecBuffer{DBID: 42}); !errors.Is(err, ErrNoSuchDatabase) {
		t.Errorf("PushDB to unknown db error = %v, want ErrNoSuchDatabase", err)
	}
	if _, err := n.PullDB(protocol.PullDB{DBID: 42}); !errors.Is(err, ErrNoSuchDatabase) {
		t.Errorf("PullDB from unknown db error = %v, want ErrNoSuchDatabase", err)
	}
}

// TestTunables tests reading and updating tunables
func TestTunables(t *testing.T) {
	n := newTestNode(t, 0)

	tun, err := n.Tunable("controltimeout")
	if err != nil {
		t.Fatalf("Tunable failed: %v", err)
	}
	if tun.Name != "ControlTimeout" || tun.Value != 60 {
		t.Errorf("Tunable = %+v, want ControlTimeout=60", tun)
	}

	if err := n.SetTunable(protocol.Tunable{Name: "ControlTimeout", Value: 10}); err != nil {
		t.Fatalf("SetTunable failed: %v", err)
	}
	if all := n.Tunables(); all.ControlTimeout != 10 {
		t.Errorf("ControlTimeout = %d after set, want 10", all.ControlTimeout)
	}

	if _, err := n.Tunable("NoSuchTunable"); !errors.Is(err, ErrUnknownTunable) {
		t.Errorf("Tunable(unknown) error = %v, want ErrUnknownTunable", err)
	}
	if err := n.SetTunable(protocol.Tunable{Name: "NoSuchTunable"}); !errors.Is(err, ErrUnknownTunable) {
		t.Errorf("SetTunable(unknown) error = %v, want ErrUnknownTunable", err)
	}

	if names := n.TunableNames(); len(names.Vars) != len(protocol.TunableNames()) {
		t.Errorf("TunableNames returned %d names", len(names.Vars))
	}
}

// TestPublicIPs tests the round robin assignment of public addresses and the interface references
func TestPublicIPs(t *testing.T) {
	n := newTestNode(t, 0)

	ips := n.PublicIPs()
	var holders []uint32
	for _, ip := range ips.IPs {
		holders = append(holders, ip.PNN)
	}
	if diff := cmp.Diff([]uint32{0, 1, 2}, holders); diff != "" {
		t.Errorf("public address holders mismatch (-want +got):\n%s", diff)
	}

	want := []protocol.Iface{
		{Name: "eth0", LinkState: protocol.LinkStateUp, References: 1},
		{Name: "eth1", LinkState: protocol.LinkStateUp, References: 0},
	}
	if diff := cmp.Diff(want, n.Ifaces().Ifaces); diff != "" {
		t.Errorf("ifaces mismatch (-want +got):\n%s", diff)
	}
}

// TestBanState tests banning the own node
func TestBanState(t *testing.T) {
	n := newTestNode(t, 0)
	generation := n.VNNMap().Generation

	if err := n.SetBanState(protocol.BanState{PNN: 1, Time: 10}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("banning another node error = %v, want ErrInvalidArgument", err)
	}

	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 300}); err != nil {
		t.Fatalf("SetBanState failed: %v", err)
	}
	if got := n.BanState(); got.Time != 300 {
		t.Errorf("BanState().Time = %d, want 300", got.Time)
	}
	if flags := n.NodeMap().Nodes[0].Flags; flags&protocol.NodeFlagBanned == 0 {
		t.Errorf("banned node has flags %s", protocol.NodeFlagsString(flags))
	}

	vnnMap := n.VNNMap()
	if vnnMap.Generation == generation {
		t.Error("ban did not start a new generation")
	}
	if diff := cmp.Diff([]uint32{1, 2}, vnnMap.Map); diff != "" {
		t.Errorf("vnn map after ban mismatch (-want +got):\n%s", diff)
	}
	if up := n.Uptime(); up.LastRecoveryFinished.IsZero() {
		t.Error("recovery time not recorded")
	}

	// lifting the ban restores the node
	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 0}); err != nil {
		t.Fatalf("unban failed: %v", err)
	}
	if flags := n.NodeMap().Nodes[0].Flags; flags != 0 {
		t.Errorf("unbanned node has flags %s", protocol.NodeFlagsString(flags))
	}

	// bans can be disabled by tunable
	_ = n.SetTunable(protocol.Tunable{Name: "EnableBans", Value: 0})
	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 10}); !errors.Is(err, ErrBansDisabled) {
		t.Errorf("SetBanState with bans disabled error = %v, want ErrBansDisabled", err)
	}
}

// TestBanExpires tests that a ban is lifted once its time is up
func TestBanExpires(t *testing.T) {
	n := newTestNode(t, 0)

	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 1}); err != nil {
		t.Fatalf("SetBanState failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if n.BanState().Time == 0 {
			if flags := n.NodeMap().Nodes[0].Flags; flags != 0 {
				t.Errorf("expired ban left flags %s", protocol.NodeFlagsString(flags))
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("ban did not expire")
}

// TestBanRenewedBeforeExpiry tests that the expiry of a replaced ban keeps the new ban
func TestBanRenewedBeforeExpiry(t *testing.T) {
	n := newTestNode(t, 0)
	nd := n.(*node)

	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 1}); err != nil {
		t.Fatalf("SetBanState failed: %v", err)
	}
	nd.banMu.Lock()
	first := nd.banEpoch
	nd.banMu.Unlock()

	if err := n.SetBanState(protocol.BanState{PNN: 0, Time: 60}); err != nil {
		t.Fatalf("renewing the ban failed: %v", err)
	}
	generation := n.VNNMap().Generation

	// the timer of the first ban fired and waited for the lock while the ban was renewed
	nd.expireBan(first)

	if got := n.BanState(); got.Time != 60 {
		t.Errorf("BanState().Time = %d after a stale expiry, want 60", got.Time)
	}
	if flags := n.NodeMap().Nodes[0].Flags; flags&protocol.NodeFlagBanned == 0 {
		t.Errorf("renewed ban lost its flag, flags %s", protocol.NodeFlagsString(flags))
	}
	if got := n.VNNMap().Generation; got != generation {
		t.Errorf("stale expiry changed the generation from %d to %d", generation, got)
	}

	// the timer of the renewed ban still lifts it
	nd.banMu.Lock()
	current := nd.banEpoch
	nd.banMu.Unlock()
	nd.expireBan(current)
	if got := n.BanState(); got.Time != 0 {
		t.Errorf("BanState().Time = %d after expiry, want 0", got.Time)
	}
}
