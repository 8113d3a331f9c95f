package client

import (
	"encoding/binary"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/transport"
)

// IControlClient sends controls to one node.
// Methods returning a payload take the arena the payload is decoded into. The payload is
// valid until the arena is released; a nil arena leaves it to the garbage collector.
type IControlClient interface {
	// PNN returns the physical node number of the node.
	PNN() (uint32, error)
	// Ping returns the number of clients the node has seen.
	Ping() (int32, error)
	// ProcessExists reports whether pid is the process serving the node.
	ProcessExists(pid uint32) (bool, error)
	// Statistics returns the statistics of the node.
	Statistics(a *arena.Arena) (*protocol.Statistics, error)
	// NodeMap returns all nodes of the cluster with their flags.
	NodeMap(a *arena.Arena) (*protocol.NodeMap, error)
	// VNNMap returns the active nodes of the current generation.
	VNNMap(a *arena.Arena) (*protocol.VNNMap, error)
	// DBMap lists the attached databases.
	DBMap(a *arena.Arena) (*protocol.DBIDMap, error)
	// Uptime returns start and recovery times of the node.
	Uptime() (*protocol.Uptime, error)
	// ListTunables returns the names of all tunables.
	ListTunables(a *arena.Arena) (*protocol.VarList, error)
	// GetTunable returns one tunable.
	GetTunable(name string, a *arena.Arena) (*protocol.Tunable, error)
	// SetTunable updates one tunable.
	SetTunable(name string, value uint32) error
	// AllTunables returns every tunable.
	AllTunables() (*protocol.TunableList, error)
	// PullDB returns the records of a database for lmaster (protocol.LMasterAny for all).
	PullDB(dbID, lmaster uint32, a *arena.Arena) (*protocol.RecBuffer, error)
	// PushDB merges records into a database.
	PushDB(buf *protocol.RecBuffer) error
	// Traverse returns all records of a database that carry data.
	Traverse(dbID uint32, a *arena.Arena) (*protocol.RecBuffer, error)
	// DBStatistics returns the statistics of one database.
	DBStatistics(dbID uint32, a *arena.Arena) (*protocol.DBStatistics, error)
	// PublicIPs lists the public addresses and their holders.
	PublicIPs(a *arena.Arena) (*protocol.PublicIPList, error)
	// Ifaces lists the interfaces of the node.
	Ifaces(a *arena.Arena) (*protocol.IfaceList, error)
	// BanState returns the ban of the node.
	BanState() (*protocol.BanState, error)
	// SetBanState bans node pnn for seconds, 0 lifts the ban.
	SetBanState(pnn, seconds uint32) error
	// Close closes the transport.
	Close() error
}

// NewControlClient connects the transport and creates a control client
// The function takes a config, a transport and a serializer as parameters
func NewControlClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IControlClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	Logger.Debugf("Control client connected to %v", config.Transport.Endpoints)

	return &controlClient{
		rpcClientAdapter{
			clientID:   defaultClientID(),
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type controlClient struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IControlClient)
// --------------------------------------------------------------------------

func (c *controlClient) PNN() (uint32, error) {
	reply, _, err := c.invokeControl(protocol.OpcodeGetPNN, nil, nil, nil)
	if err != nil {
		return 0, err
	}
	if reply.Status < 0 {
		return 0, &ControlError{Opcode: protocol.OpcodeGetPNN, Status: reply.Status, Msg: reply.ErrMsg}
	}
	return uint32(reply.Status), nil
}

func (c *controlClient) Ping() (int32, error) {
	reply, _, err := c.invokeControl(protocol.OpcodePing, nil, nil, nil)
	if err != nil {
		return 0, err
	}
	if reply.Status < 0 {
		return 0, &ControlError{Opcode: protocol.OpcodePing, Status: reply.Status, Msg: reply.ErrMsg}
	}
	return reply.Status, nil
}

func (c *controlClient) ProcessExists(pid uint32) (bool, error) {
	reply, _, err := c.invokeControl(protocol.OpcodeProcessExists, binary.BigEndian.AppendUint32(nil, pid), nil, nil)
	if err != nil {
		return false, err
	}
	return reply.Status == 0, nil
}

func (c *controlClient) Statistics(a *arena.Arena) (*protocol.Statistics, error) {
	return invoke[protocol.Statistics](&c.rpcClientAdapter, protocol.OpcodeGetStatistics, nil, a)
}

func (c *controlClient) NodeMap(a *arena.Arena) (*protocol.NodeMap, error) {
	return invoke[protocol.NodeMap](&c.rpcClientAdapter, protocol.OpcodeGetNodeMap, nil, a)
}

func (c *controlClient) VNNMap(a *arena.Arena) (*protocol.VNNMap, error) {
	return invoke[protocol.VNNMap](&c.rpcClientAdapter, protocol.OpcodeGetVNNMap, nil, a)
}

func (c *controlClient) DBMap(a *arena.Arena) (*protocol.DBIDMap, error) {
	return invoke[protocol.DBIDMap](&c.rpcClientAdapter, protocol.OpcodeGetDBMap, nil, a)
}

func (c *controlClient) Uptime() (*protocol.Uptime, error) {
	return invoke[protocol.Uptime](&c.rpcClientAdapter, protocol.OpcodeUptime, nil, nil)
}

func (c *controlClient) ListTunables(a *arena.Arena) (*protocol.VarList, error) {
	return invoke[protocol.VarList](&c.rpcClientAdapter, protocol.OpcodeListTunables, nil, a)
}

func (c *controlClient) GetTunable(name string, a *arena.Arena) (*protocol.Tunable, error) {
	return invoke[protocol.Tunable](&c.rpcClientAdapter, protocol.OpcodeGetTunable, &protocol.Tunable{Name: name}, a)
}

func (c *controlClient) SetTunable(name string, value uint32) error {
	return c.invokeStatus(protocol.OpcodeSetTunable, &protocol.Tunable{Name: name, Value: value})
}

func (c *controlClient) AllTunables() (*protocol.TunableList, error) {
	return invoke[protocol.TunableList](&c.rpcClientAdapter, protocol.OpcodeGetAllTunables, nil, nil)
}

func (c *controlClient) PullDB(dbID, lmaster uint32, a *arena.Arena) (*protocol.RecBuffer, error) {
	return invoke[protocol.RecBuffer](&c.rpcClientAdapter, protocol.OpcodePullDB, &protocol.PullDB{DBID: dbID, LMaster: lmaster}, a)
}

func (c *controlClient) PushDB(buf *protocol.RecBuffer) error {
	return c.invokeStatus(protocol.OpcodePushDB, buf)
}

func (c *controlClient) Traverse(dbID uint32, a *arena.Arena) (*protocol.RecBuffer, error) {
	return invoke[protocol.RecBuffer](&c.rpcClientAdapter, protocol.OpcodeTraverseStart, &protocol.TraverseStart{DBID: dbID}, a)
}

func (c *controlClient) DBStatistics(dbID uint32, a *arena.Arena) (*protocol.DBStatistics, error) {
	return invoke[protocol.DBStatistics](&c.rpcClientAdapter, protocol.OpcodeGetDBStatistics, &protocol.PullDB{DBID: dbID}, a)
}

func (c *controlClient) PublicIPs(a *arena.Arena) (*protocol.PublicIPList, error) {
	return invoke[protocol.PublicIPList](&c.rpcClientAdapter, protocol.OpcodeGetPublicIPs, nil, a)
}

func (c *controlClient) Ifaces(a *arena.Arena) (*protocol.IfaceList, error) {
	return invoke[protocol.IfaceList](&c.rpcClientAdapter, protocol.OpcodeGetIfaces, nil, a)
}

func (c *controlClient) BanState() (*protocol.BanState, error) {
	return invoke[protocol.BanState](&c.rpcClientAdapter, protocol.OpcodeGetBanState, nil, nil)
}

func (c *controlClient) SetBanState(pnn, seconds uint32) error {
	return c.invokeStatus(protocol.OpcodeSetBanState, &protocol.BanState{PNN: pnn, Time: seconds})
}

func (c *controlClient) Close() error {
	return c.transport.Close()
}
