package node

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("node")

// UnknownPNN is reported as holder of a public address no active node can host
const UnknownPNN uint32 = 0xFFFFFFFF

// node implements INode
type node struct {
	config    Config
	stats     *Stats
	startTime time.Time
	closed    atomic.Bool

	// Node flags, vnn map generation and recovery times change together
	stateMu              sync.RWMutex
	flags                []uint32
	generation           uint32
	lastRecoveryStarted  time.Time
	lastRecoveryFinished time.Time

	dbs *xsync.MapOf[uint32, *database]

	tunablesMu sync.RWMutex
	tunables   protocol.TunableList

	banMu    sync.Mutex
	ban      protocol.BanState
	banTimer *time.Timer
	banEpoch uint64 // Incremented by every ban change, an expiry only applies to its own epoch
}

// -----------------------------------------------------------
// Factory Method
// -----------------------------------------------------------

// NewNode creates the node state for config and attaches the configured databases
func NewNode(config Config) (INode, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid node config")
	}

	now := time.Now()
	n := &node{
		config:     config,
		stats:      NewStats(now),
		startTime:  now,
		flags:      make([]uint32, len(config.Nodes)),
		generation: 1,
		dbs:        xsync.NewMapOf[uint32, *database](),
		tunables:   protocol.DefaultTunables(),
	}

	for _, db := range config.Databases {
		if _, err := n.AttachDB(db.Name, db.Flags); err != nil {
			return nil, err
		}
	}

	Logger.Infof("Node %d started with %d nodes, %d public addresses and %d databases",
		config.PNN, len(config.Nodes), len(config.PublicIPs), len(config.Databases))
	return n, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see node.INode)
// --------------------------------------------------------------------------

func (n *node) PNN() uint32 {
	return n.config.PNN
}

func (n *node) NodeMap() protocol.NodeMap {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()

	nodes := make([]protocol.NodeAndFlags, len(n.config.Nodes))
	for i, addr := range n.config.Nodes {
		nodes[i] = protocol.NodeAndFlags{PNN: uint32(i), Flags: n.flags[i], Addr: addr}
	}
	return protocol.NodeMap{Nodes: nodes}
}

func (n *node) VNNMap() protocol.VNNMap {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return protocol.VNNMap{Generation: n.generation, Map: n.activeNodes()}
}

func (n *node) Uptime() protocol.Uptime {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return protocol.Uptime{
		CurrentTime:          protocol.TimevalOf(time.Now()),
		CtdbdStartTime:       protocol.TimevalOf(n.startTime),
		LastRecoveryStarted:  protocol.TimevalOf(n.lastRecoveryStarted),
		LastRecoveryFinished: protocol.TimevalOf(n.lastRecoveryFinished),
	}
}

func (n *node) Stats() *Stats {
	return n.stats
}

func (n *node) Statistics() protocol.Statistics {
	s := n.stats.Snapshot()

	// hop counts are tracked per database, the node reports their sum
	n.dbs.Range(func(_ uint32, db *database) bool {
		buckets := db.hops.Buckets()
		for i := range s.HopCountBucket {
			s.HopCountBucket[i] += buckets[i]
		}
		s.MaxHopCount = max(s.MaxHopCount, uint32(min(db.hops.Max(), uint64(^uint32(0)))))
		return true
	})
	return s
}

func (n *node) DBMap() protocol.DBIDMap {
	var dbs []protocol.DBID
	n.dbs.Range(func(id uint32, db *database) bool {
		dbs = append(dbs, protocol.DBID{DBID: id, Flags: db.flags})
		return true
	})
	slices.SortFunc(dbs, func(a, b protocol.DBID) int {
		return cmp.Compare(a.DBID, b.DBID)
	})
	return protocol.DBIDMap{DBs: dbs}
}

func (n *node) AttachDB(name string, flags uint8) (uint32, error) {
	if name == "" {
		return 0, errors.Wrap(ErrInvalidArgument, "empty database name")
	}

	db, loaded := n.dbs.LoadOrCompute(DatabaseID(name), func() *database {
		return newDatabase(DatabaseConfig{Name: name, Flags: flags}, n.stats)
	})
	if loaded && db.name != name {
		return 0, errors.Wrapf(ErrInvalidArgument, "database id 0x%08x of %q already used by %q", db.id, name, db.name)
	}
	if !loaded {
		Logger.Infof("Attached database %s (id 0x%08x, flags 0x%02x)", name, db.id, flags)
	}
	return db.id, nil
}

func (n *node) PullDB(req protocol.PullDB) (protocol.RecBuffer, error) {
	db, err := n.database(req.DBID)
	if err != nil {
		return protocol.RecBuffer{}, err
	}
	vnnmap := n.VNNMap()
	return protocol.RecBuffer{DBID: db.id, Records: db.pull(req.LMaster, vnnmap.Map)}, nil
}

func (n *node) PushDB(buf *protocol.RecBuffer) (int, error) {
	db, err := n.database(buf.DBID)
	if err != nil {
		return 0, err
	}
	applied, err := db.push(buf.Records)
	if err != nil {
		db.locks.fail()
		return 0, err
	}
	Logger.Debugf("Pushed %d of %d records into %s", applied, len(buf.Records), db.name)
	return applied, nil
}

func (n *node) Traverse(dbID uint32, withEmpty bool) (protocol.RecBuffer, error) {
	db, err := n.database(dbID)
	if err != nil {
		return protocol.RecBuffer{}, err
	}
	return protocol.RecBuffer{DBID: db.id, Records: db.traverse(withEmpty)}, nil
}

func (n *node) DBStatistics(dbID uint32) (protocol.DBStatistics, error) {
	db, err := n.database(dbID)
	if err != nil {
		return protocol.DBStatistics{}, err
	}
	return db.statistics(), nil
}

func (n *node) Tunable(name string) (protocol.Tunable, error) {
	n.tunablesMu.RLock()
	defer n.tunablesMu.RUnlock()

	value, ok := n.tunables.Get(name)
	if !ok {
		return protocol.Tunable{}, errors.Wrapf(ErrUnknownTunable, "%q", name)
	}
	canonical, _ := protocol.CanonicalTunableName(name)
	return protocol.Tunable{Name: canonical, Value: value}, nil
}

func (n *node) SetTunable(t protocol.Tunable) error {
	n.tunablesMu.Lock()
	defer n.tunablesMu.Unlock()

	if !n.tunables.Set(t.Name, t.Value) {
		return errors.Wrapf(ErrUnknownTunable, "%q", t.Name)
	}
	Logger.Infof("Tunable %s set to %d", t.Name, t.Value)
	return nil
}

func (n *node) TunableNames() protocol.VarList {
	return protocol.VarList{Vars: protocol.TunableNames()}
}

func (n *node) Tunables() protocol.TunableList {
	n.tunablesMu.RLock()
	defer n.tunablesMu.RUnlock()
	return n.tunables
}

func (n *node) PublicIPs() protocol.PublicIPList {
	n.stateMu.RLock()
	active := n.activeNodes()
	n.stateMu.RUnlock()

	ips := make([]protocol.PublicIP, len(n.config.PublicIPs))
	for i, ip := range n.config.PublicIPs {
		ips[i] = protocol.PublicIP{PNN: hostOf(i, active), Addr: ip.Addr}
	}
	return protocol.PublicIPList{IPs: ips}
}

func (n *node) Ifaces() protocol.IfaceList {
	n.stateMu.RLock()
	active := n.activeNodes()
	n.stateMu.RUnlock()

	refs := make(map[string]uint32)
	for i, ip := range n.config.PublicIPs {
		if _, ok := refs[ip.Iface]; !ok {
			refs[ip.Iface] = 0
		}
		if hostOf(i, active) == n.config.PNN {
			refs[ip.Iface]++
		}
	}

	ifaces := make([]protocol.Iface, 0, len(refs))
	for name, count := range refs {
		ifaces = append(ifaces, protocol.Iface{Name: name, LinkState: protocol.LinkStateUp, References: count})
	}
	slices.SortFunc(ifaces, func(a, b protocol.Iface) int {
		return strings.Compare(a.Name, b.Name)
	})
	return protocol.IfaceList{Ifaces: ifaces}
}

func (n *node) BanState() protocol.BanState {
	n.banMu.Lock()
	defer n.banMu.Unlock()
	return n.ban
}

func (n *node) SetBanState(state protocol.BanState) error {
	if n.closed.Load() {
		return ErrClosed
	}
	if state.PNN != n.config.PNN {
		return errors.Wrapf(ErrInvalidArgument, "ban state for node %d sent to node %d", state.PNN, n.config.PNN)
	}
	if enabled, _ := n.tunableValue("EnableBans"); state.Time > 0 && enabled == 0 {
		return ErrBansDisabled
	}

	n.banMu.Lock()
	defer n.banMu.Unlock()

	if n.banTimer != nil {
		n.banTimer.Stop()
		n.banTimer = nil
	}
	n.banEpoch++

	n.ban = state
	if state.Time == 0 {
		Logger.Infof("Node %d unbanned", state.PNN)
		n.setOwnFlag(protocol.NodeFlagBanned, false)
		return nil
	}

	Logger.Warningf("Node %d banned for %d seconds", state.PNN, state.Time)
	n.setOwnFlag(protocol.NodeFlagBanned, true)
	epoch := n.banEpoch
	n.banTimer = time.AfterFunc(time.Duration(state.Time)*time.Second, func() {
		n.expireBan(epoch)
	})
	return nil
}

// expireBan lifts the ban installed in epoch. A timer that fired while the ban was being
// replaced finds a newer epoch and leaves the new ban alone.
func (n *node) expireBan(epoch uint64) {
	n.banMu.Lock()
	defer n.banMu.Unlock()
	if epoch != n.banEpoch {
		return
	}
	n.banEpoch++
	n.ban = protocol.BanState{PNN: n.config.PNN}
	n.banTimer = nil
	Logger.Infof("Ban of node %d expired", n.config.PNN)
	n.setOwnFlag(protocol.NodeFlagBanned, false)
}

func (n *node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	n.banMu.Lock()
	defer n.banMu.Unlock()
	if n.banTimer != nil {
		n.banTimer.Stop()
		n.banTimer = nil
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// database looks up an attached database
func (n *node) database(dbID uint32) (*database, error) {
	db, ok := n.dbs.Load(dbID)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchDatabase, "id 0x%08x", dbID)
	}
	return db, nil
}

// tunableValue reads a tunable under the tunables lock
func (n *node) tunableValue(name string) (uint32, bool) {
	n.tunablesMu.RLock()
	defer n.tunablesMu.RUnlock()
	return n.tunables.Get(name)
}

// activeNodes returns the pnns of all nodes without an inactive flag. Callers hold stateMu.
func (n *node) activeNodes() []uint32 {
	var active []uint32
	for pnn, flags := range n.flags {
		if flags&protocol.NodeFlagInactive == 0 {
			active = append(active, uint32(pnn))
		}
	}
	return active
}

// setOwnFlag sets or clears a flag of this node. A change of the active node set starts a new
// generation and counts as a recovery.
func (n *node) setOwnFlag(flag uint32, set bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	old := n.flags[n.config.PNN]
	updated := old &^ flag
	if set {
		updated |= flag
	}
	if updated == old {
		return
	}
	n.flags[n.config.PNN] = updated

	if (old&protocol.NodeFlagInactive == 0) != (updated&protocol.NodeFlagInactive == 0) {
		n.lastRecoveryStarted = time.Now()
		n.generation++
		n.lastRecoveryFinished = time.Now()
		n.stats.RecoveryDone()
		Logger.Infof("Node %d flags %s -> %s, new generation %d",
			n.config.PNN, protocol.NodeFlagsString(old), protocol.NodeFlagsString(updated), n.generation)
	}
}

// hostOf assigns public address i round robin to the active nodes
func hostOf(i int, active []uint32) uint32 {
	if len(active) == 0 {
		return UnknownPNN
	}
	return active[i%len(active)]
}
