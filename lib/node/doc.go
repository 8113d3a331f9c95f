// Package node holds the in-memory state of one cluster node that the control server
// answers controls from.
//
// The package contains:
//   - node: the INode implementation with node map, vnn map, tunables, public addresses
//     and the ban state of this node
//   - database: attached in-memory databases with LTDB record headers, pulled and pushed
//     as record buffers
//   - stats: node and lock statistics collected in a go-metrics registry and converted
//     into the wire statistics on demand
//   - buckets: a power of two CountHistogram for hop counts and lock wait times
//   - hotkeys: a min heap tracking the most frequently migrated keys of a database
//
// Membership, election and recovery are not part of this package. The node map comes
// from static configuration; only the own node's flags change (by banning it).
//
// Usage:
//
//	n, err := node.NewNode(node.Config{
//		PNN:       0,
//		Nodes:     []protocol.SockAddr{addr0, addr1},
//		Databases: []node.DatabaseConfig{{Name: "locking.tdb"}},
//	})
//	buf, err := n.PullDB(protocol.PullDB{DBID: node.DatabaseID("locking.tdb"), LMaster: protocol.LMasterAny})
package node
