package node

import (
	"github.com/ValentinKolb/dctl/lib/protocol"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// INode is the in-memory state of one cluster node as seen through the control protocol.
// Read operations return independent copies, the caller may keep or modify them.
// All methods are safe for concurrent use.
type INode interface {
	// PNN returns the physical node number of this node.
	PNN() uint32
	// NodeMap returns every configured node with its current flags.
	NodeMap() protocol.NodeMap
	// VNNMap returns the active nodes of the current generation. The generation
	// changes whenever the set of active nodes changes.
	VNNMap() protocol.VNNMap
	// Uptime returns start and recovery times of the node.
	Uptime() protocol.Uptime
	// Stats returns the statistics collector the control server records into.
	Stats() *Stats
	// Statistics returns a statistics snapshot of the node.
	Statistics() protocol.Statistics

	// DBMap lists the attached databases.
	DBMap() protocol.DBIDMap
	// AttachDB attaches a database by name and returns its id. Attaching an attached
	// database is not an error.
	AttachDB(name string, flags uint8) (dbID uint32, err error)
	// PullDB returns the records of a database whose location master is req.LMaster,
	// or all records for protocol.LMasterAny. Record values carry their LTDB header.
	PullDB(req protocol.PullDB) (protocol.RecBuffer, error)
	// PushDB merges records into a database. A record replaces the stored one if its
	// RSN is higher. It returns the number of records that were applied.
	PushDB(buf *protocol.RecBuffer) (applied int, err error)
	// Traverse returns every record of a database; records with empty data are skipped
	// unless withEmpty is set.
	Traverse(dbID uint32, withEmpty bool) (protocol.RecBuffer, error)
	// DBStatistics returns the statistics of one database.
	DBStatistics(dbID uint32) (protocol.DBStatistics, error)

	// Tunable returns the value of a tunable, the name is matched case insensitive.
	Tunable(name string) (protocol.Tunable, error)
	// SetTunable updates a tunable.
	SetTunable(t protocol.Tunable) error
	// TunableNames lists the names of all tunables in wire order.
	TunableNames() protocol.VarList
	// Tunables returns all tunables.
	Tunables() protocol.TunableList

	// PublicIPs lists the public addresses with the node currently hosting them.
	PublicIPs() protocol.PublicIPList
	// Ifaces lists the interfaces of this node's public addresses.
	Ifaces() protocol.IfaceList

	// BanState returns the current ban of this node.
	BanState() protocol.BanState
	// SetBanState bans this node for state.Time seconds, 0 lifts the ban.
	SetBanState(state protocol.BanState) error

	// Close stops all timers of the node.
	Close() error
}
