package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/server"
	"github.com/ValentinKolb/dctl/rpc/transport/unix"
	"github.com/google/go-cmp/cmp"
)

// startServer serves node 0 of a two node cluster on a unix socket and returns a connected client
func startServer(t *testing.T) IControlClient {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "dctl.sock")
	config := common.ServerConfig{
		PNN:       0,
		Nodes:     []string{"10.0.0.1:4379", "10.0.0.2:4379"},
		PublicIPs: []string{"192.168.0.10/24@eth0", "192.168.0.11/24@eth1"},
		Databases: []string{"test.tdb"},
		Transport: common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 2},
		LogLevel:  "error",
	}

	s := server.NewRPCServer(config, unix.NewUnixServerTransport(), serializer.NewBinarySerializer())
	go func() {
		_ = s.Serve()
	}()
	t.Cleanup(func() { _ = s.Close() })

	// Wait for the socket
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not create %s", socket)
		}
		time.Sleep(10 * time.Millisecond)
	}

	c, err := NewControlClient(common.ClientConfig{
		TimeoutSecond: 5,
		DestNode:      protocol.DestCurrent,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{socket},
			RetryCount: 1,
		},
	}, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("NewControlClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// TestNodeControls tests the controls describing the node and the cluster
func TestNodeControls(t *testing.T) {
	c := startServer(t)

	pnn, err := c.PNN()
	if err != nil || pnn != 0 {
		t.Fatalf("PNN() = %d, %v, want 0", pnn, err)
	}

	clients, err := c.Ping()
	if err != nil || clients != 1 {
		t.Errorf("Ping() = %d, %v, want 1", clients, err)
	}

	exists, err := c.ProcessExists(uint32(os.Getpid()))
	if err != nil || !exists {
		t.Errorf("ProcessExists(own pid) = %v, %v, want true", exists, err)
	}
	exists, err = c.ProcessExists(uint32(os.Getpid()) + 1)
	if err != nil || exists {
		t.Errorf("ProcessExists(other pid) = %v, %v, want false", exists, err)
	}

	a := arena.New(0)
	defer a.Release()

	nodeMap, err := c.NodeMap(a)
	if err != nil {
		t.Fatalf("NodeMap failed: %v", err)
	}
	if len(nodeMap.Nodes) != 2 || nodeMap.Nodes[1].PNN != 1 || nodeMap.Nodes[1].Addr.String() != "10.0.0.2:4379" {
		t.Errorf("NodeMap() = %+v", nodeMap.Nodes)
	}

	vnnMap, err := c.VNNMap(a)
	if err != nil {
		t.Fatalf("VNNMap failed: %v", err)
	}
	if diff := cmp.Diff([]uint32{0, 1}, vnnMap.Map); diff != "" {
		t.Errorf("VNNMap mismatch (-want +got):\n%s", diff)
	}

	ips, err := c.PublicIPs(a)
	if err != nil {
		t.Fatalf("PublicIPs failed: %v", err)
	}
	if len(ips.IPs) != 2 || ips.IPs[0].PNN != 0 || ips.IPs[1].PNN != 1 {
		t.Errorf("PublicIPs() = %+v", ips.IPs)
	}

	ifaces, err := c.Ifaces(a)
	if err != nil {
		t.Fatalf("Ifaces failed: %v", err)
	}
	if len(ifaces.Ifaces) != 2 || ifaces.Ifaces[0].Name != "eth0" || ifaces.Ifaces[0].References != 1 {
		t.Errorf("Ifaces() = %+v", ifaces.Ifaces)
	}

	uptime, err := c.Uptime()
	if err != nil {
		t.Fatalf("Uptime failed: %v", err)
	}
	if uptime.CtdbdStartTime.Sec == 0 || uptime.CurrentTime.Sec < uptime.CtdbdStartTime.Sec {
		t.Errorf("Uptime() = %+v", uptime)
	}

	stats, err := c.Statistics(a)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Client.ReqControl == 0 || stats.NumClients != 1 {
		t.Errorf("Statistics() counted %d controls from %d clients", stats.Client.ReqControl, stats.NumClients)
	}
}

// TestDatabaseControls tests pushing, pulling and traversing records
func TestDatabaseControls(t *testing.T) {
	c := startServer(t)
	dbID := node.DatabaseID("test.tdb")

	a := arena.New(0)
	defer a.Release()

	dbMap, err := c.DBMap(a)
	if err != nil {
		t.Fatalf("DBMap failed: %v", err)
	}
	if diff := cmp.Diff([]protocol.DBID{{DBID: dbID}}, dbMap.DBs); diff != "" {
		t.Errorf("DBMap mismatch (-want +got):\n%s", diff)
	}

	h := protocol.LTDBHeader{RSN: 1, DMaster: 0}
	push := &protocol.RecBuffer{DBID: dbID, Records: []protocol.Record{
		{Key: []byte("alpha"), Value: protocol.JoinLTDBRecord(&h, []byte("one"))},
		{Key: []byte("beta"), Value: protocol.JoinLTDBRecord(&h, nil)},
	}}
	if err := c.PushDB(push); err != nil {
		t.Fatalf("PushDB failed: %v", err)
	}

	pulled, err := c.PullDB(dbID, protocol.LMasterAny, a)
	if err != nil {
		t.Fatalf("PullDB failed: %v", err)
	}
	if diff := cmp.Diff(push, pulled); diff != "" {
		t.Errorf("PullDB mismatch (-pushed +pulled):\n%s", diff)
	}

	traversed, err := c.Traverse(dbID, a)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if len(traversed.Records) != 1 || string(traversed.Records[0].Key) != "alpha" {
		t.Errorf("Traverse() = %+v, want only alpha", traversed.Records)
	}

	dbStats, err := c.DBStatistics(dbID, a)
	if err != nil {
		t.Fatalf("DBStatistics failed: %v", err)
	}
	if dbStats.Locks.NumCalls == 0 {
		t.Errorf("DBStatistics() counted no lock calls")
	}

	_, err = c.PullDB(dbID+1, protocol.LMasterAny, a)
	if got := StatusOf(err); got != server.StatusNotFound {
		t.Errorf("PullDB(unknown db) status = %d, want %d (err %v)", got, server.StatusNotFound, err)
	}
}

// TestTunableAndBanControls tests the controls changing the node settings
func TestTunableAndBanControls(t *testing.T) {
	c := startServer(t)

	a := arena.New(0)
	defer a.Release()

	names, err := c.ListTunables(a)
	if err != nil {
		t.Fatalf("ListTunables failed: %v", err)
	}
	if len(names.Vars) == 0 {
		t.Fatalf("ListTunables() returned no names")
	}

	if err := c.SetTunable("RecoverTimeout", 42); err != nil {
		t.Fatalf("SetTunable failed: %v", err)
	}
	tunable, err := c.GetTunable("RecoverTimeout", a)
	if err != nil || tunable.Value != 42 {
		t.Errorf("GetTunable(RecoverTimeout) = %+v, %v, want 42", tunable, err)
	}
	all, err := c.AllTunables()
	if err != nil || all.RecoverTimeout != 42 {
		t.Errorf("AllTunables().RecoverTimeout = %+v, %v, want 42", all, err)
	}

	_, err = c.GetTunable("NoSuchTunable", a)
	if got := StatusOf(err); got != server.StatusNotFound {
		t.Errorf("GetTunable(unknown) status = %d, want %d", got, server.StatusNotFound)
	}

	if err := c.SetBanState(0, 60); err != nil {
		t.Fatalf("SetBanState failed: %v", err)
	}
	ban, err := c.BanState()
	if err != nil || ban.Time != 60 {
		t.Errorf("BanState() = %+v, %v, want 60 seconds", ban, err)
	}
	if err := c.SetBanState(0, 0); err != nil {
		t.Fatalf("lifting the ban failed: %v", err)
	}

	err = c.SetBanState(1, 60)
	if got := StatusOf(err); got != server.StatusInvalid {
		t.Errorf("SetBanState(other node) status = %d, want %d", got, server.StatusInvalid)
	}
}
