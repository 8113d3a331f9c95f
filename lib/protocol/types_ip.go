package protocol

// Interface link states
const (
	LinkStateDown uint16 = 0
	LinkStateUp   uint16 = 1
)

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// Connection is a TCP connection between two socket addresses
type Connection struct {
	Src SockAddr
	Dst SockAddr
}

func (*Connection) Kind() Kind { return KindConnection }

func (m *Connection) fields(l *layout) {
	field(l, &m.Src, SockAddrCodec)
	field(l, &m.Dst, SockAddrCodec)
}

var connectionListCodec = ListOf(structOf[Connection]())

// TickleList lists the connections to a public address that are tickled after a takeover
type TickleList struct {
	Addr  SockAddr
	Conns []Connection
}

func (*TickleList) Kind() Kind { return KindTickleList }

func (m *TickleList) fields(l *layout) {
	field(l, &m.Addr, SockAddrCodec)
	field(l, &m.Conns, connectionListCodec)
}

// --------------------------------------------------------------------------
// Public Addresses
// --------------------------------------------------------------------------

// AddrInfo is a public address with its netmask bits and interface name
type AddrInfo struct {
	Addr  SockAddr
	Mask  uint32
	Iface string
}

func (*AddrInfo) Kind() Kind { return KindAddrInfo }

func (m *AddrInfo) fields(l *layout) {
	field(l, &m.Addr, SockAddrCodec)
	field(l, &m.Mask, Uint32)
	field(l, &m.Iface, String)
}

// PublicIP is a public address and the node currently hosting it
type PublicIP struct {
	PNN  uint32
	Addr SockAddr
}

func (*PublicIP) Kind() Kind { return KindPublicIP }

func (m *PublicIP) fields(l *layout) {
	field(l, &m.PNN, Uint32)
	field(l, &m.Addr, SockAddrCodec)
}

// PublicIPList lists public addresses
type PublicIPList struct {
	IPs []PublicIP
}

var publicIPListCodec = ListOf(structOf[PublicIP]())

func (*PublicIPList) Kind() Kind { return KindPublicIPList }

func (m *PublicIPList) fields(l *layout) {
	field(l, &m.IPs, publicIPListCodec)
}

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// Iface is a network interface that can host public addresses
type Iface struct {
	Name       string
	LinkState  uint16
	References uint32
}

func (*Iface) Kind() Kind { return KindIface }

func (m *Iface) fields(l *layout) {
	field(l, &m.Name, String)
	field(l, &m.LinkState, Uint16)
	field(l, &m.References, Uint32)
}

// IfaceList lists network interfaces
type IfaceList struct {
	Ifaces []Iface
}

var ifaceListCodec = ListOf(structOf[Iface]())

func (*IfaceList) Kind() Kind { return KindIfaceList }

func (m *IfaceList) fields(l *layout) {
	field(l, &m.Ifaces, ifaceListCodec)
}

// PublicIPInfo describes one public address: current holder, active interface and candidate interfaces
type PublicIPInfo struct {
	IP        PublicIP
	ActiveIdx uint32
	Ifaces    *IfaceList
}

var optionalIfaceListCodec = OptionalOf(structOf[IfaceList]())

func (*PublicIPInfo) Kind() Kind { return KindPublicIPInfo }

func (m *PublicIPInfo) fields(l *layout) {
	m.IP.fields(l)
	field(l, &m.ActiveIdx, Uint32)
	field(l, &m.Ifaces, optionalIfaceListCodec)
}
