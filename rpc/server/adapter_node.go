package server

import (
	"cmp"
	"encoding/binary"
	"os"
	"slices"

	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// NewNodeServerAdapter creates an adapter answering every control of the node state
func NewNodeServerAdapter() IRPCServerAdapter {
	adapter := &nodeServerAdapterImpl{
		handlers: xsync.NewMapOf[protocol.Opcode, ControlHandler](),
	}

	adapter.handlers.Store(protocol.OpcodeProcessExists, handleProcessExists)
	adapter.handlers.Store(protocol.OpcodePing, handlePing)
	adapter.handlers.Store(protocol.OpcodeGetPNN, handleGetPNN)
	adapter.handlers.Store(protocol.OpcodeGetStatistics, reply(func(n node.INode) protocol.Message {
		s := n.Statistics()
		return &s
	}))
	adapter.handlers.Store(protocol.OpcodeGetVNNMap, reply(func(n node.INode) protocol.Message {
		m := n.VNNMap()
		return &m
	}))
	adapter.handlers.Store(protocol.OpcodeGetDBMap, reply(func(n node.INode) protocol.Message {
		m := n.DBMap()
		return &m
	}))
	adapter.handlers.Store(protocol.OpcodeGetNodeMap, reply(func(n node.INode) protocol.Message {
		m := n.NodeMap()
		return &m
	}))
	adapter.handlers.Store(protocol.OpcodeUptime, reply(func(n node.INode) protocol.Message {
		u := n.Uptime()
		return &u
	}))
	adapter.handlers.Store(protocol.OpcodeListTunables, reply(func(n node.INode) protocol.Message {
		l := n.TunableNames()
		return &l
	}))
	adapter.handlers.Store(protocol.OpcodeGetAllTunables, reply(func(n node.INode) protocol.Message {
		l := n.Tunables()
		return &l
	}))
	adapter.handlers.Store(protocol.OpcodeGetPublicIPs, reply(func(n node.INode) protocol.Message {
		l := n.PublicIPs()
		return &l
	}))
	adapter.handlers.Store(protocol.OpcodeGetIfaces, reply(func(n node.INode) protocol.Message {
		l := n.Ifaces()
		return &l
	}))
	adapter.handlers.Store(protocol.OpcodeGetBanState, reply(func(n node.INode) protocol.Message {
		b := n.BanState()
		return &b
	}))
	adapter.handlers.Store(protocol.OpcodePullDB, handlePullDB)
	adapter.handlers.Store(protocol.OpcodePushDB, handlePushDB)
	adapter.handlers.Store(protocol.OpcodeTraverseStart, handleTraverseStart)
	adapter.handlers.Store(protocol.OpcodeGetTunable, handleGetTunable)
	adapter.handlers.Store(protocol.OpcodeSetTunable, handleSetTunable)
	adapter.handlers.Store(protocol.OpcodeSetBanState, handleSetBanState)
	adapter.handlers.Store(protocol.OpcodeGetDBStatistics, handleGetDBStatistics)

	return adapter
}

type nodeServerAdapterImpl struct {
	handlers *xsync.MapOf[protocol.Opcode, ControlHandler]
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (adapter *nodeServerAdapterImpl) Handle(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	// Check for nil node
	if n == nil {
		return StatusFailed, nil, errors.New("handler: node is nil")
	}

	handler, ok := adapter.handlers.Load(req.Opcode)
	if !ok {
		return StatusUnsupported, nil, errors.Wrapf(ErrUnsupportedControl, "%s", req.Opcode)
	}
	return handler(req, payload, n)
}

func (adapter *nodeServerAdapterImpl) Opcodes() []protocol.Opcode {
	var out []protocol.Opcode
	adapter.handlers.Range(func(op protocol.Opcode, _ ControlHandler) bool {
		out = append(out, op)
		return true
	})
	slices.SortFunc(out, func(a, b protocol.Opcode) int { return cmp.Compare(a, b) })
	return out
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

// reply wraps a read-only control without request payload
func reply(read func(n node.INode) protocol.Message) ControlHandler {
	return func(_ *protocol.ReqControl, _ protocol.Message, n node.INode) (int32, protocol.Message, error) {
		return 0, read(n), nil
	}
}

// payloadOf asserts the request payload of a control
func payloadOf[T any, PT interface {
	*T
	protocol.Message
}](req *protocol.ReqControl, payload protocol.Message) (PT, error) {
	p, ok := payload.(PT)
	if !ok || p == nil {
		return nil, errors.Wrapf(ErrWrongPayload, "%s", req.Opcode)
	}
	return p, nil
}

// handleProcessExists answers 0 if the pid in the request data is the serving process
func handleProcessExists(req *protocol.ReqControl, _ protocol.Message, _ node.INode) (int32, protocol.Message, error) {
	if len(req.Data) != 4 {
		return StatusInvalid, nil, errors.Wrapf(node.ErrInvalidArgument, "pid of %d bytes", len(req.Data))
	}
	if int(binary.BigEndian.Uint32(req.Data)) != os.Getpid() {
		return StatusNoProcess, nil, nil
	}
	return 0, nil, nil
}

// handlePing answers with the number of clients seen so far as status
func handlePing(_ *protocol.ReqControl, _ protocol.Message, n node.INode) (int32, protocol.Message, error) {
	return int32(n.Stats().NumClients()), nil, nil
}

// handleGetPNN answers with the pnn of the node as status
func handleGetPNN(_ *protocol.ReqControl, _ protocol.Message, n node.INode) (int32, protocol.Message, error) {
	return int32(n.PNN()), nil, nil
}

func handlePullDB(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.PullDB](req, payload)
	if err != nil {
		return 0, nil, err
	}
	buf, err := n.PullDB(*p)
	if err != nil {
		return 0, nil, err
	}
	return 0, &buf, nil
}

func handlePushDB(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.RecBuffer](req, payload)
	if err != nil {
		return 0, nil, err
	}
	if _, err := n.PushDB(p); err != nil {
		return 0, nil, err
	}
	return 0, nil, nil
}

func handleTraverseStart(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.TraverseStart](req, payload)
	if err != nil {
		return 0, nil, err
	}
	buf, err := n.Traverse(p.DBID, false)
	if err != nil {
		return 0, nil, err
	}
	return 0, &buf, nil
}

func handleGetTunable(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.Tunable](req, payload)
	if err != nil {
		return 0, nil, err
	}
	t, err := n.Tunable(p.Name)
	if err != nil {
		return 0, nil, err
	}
	return 0, &t, nil
}

func handleSetTunable(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.Tunable](req, payload)
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, n.SetTunable(*p)
}

func handleSetBanState(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.BanState](req, payload)
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, n.SetBanState(*p)
}

func handleGetDBStatistics(req *protocol.ReqControl, payload protocol.Message, n node.INode) (int32, protocol.Message, error) {
	p, err := payloadOf[protocol.PullDB](req, payload)
	if err != nil {
		return 0, nil, err
	}
	stats, err := n.DBStatistics(p.DBID)
	if err != nil {
		return 0, nil, err
	}
	return 0, &stats, nil
}
