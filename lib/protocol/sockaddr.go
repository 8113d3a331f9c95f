package protocol

import (
	"encoding/binary"
	"net/netip"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/cockroachdb/errors"
)

// Address family discriminants on the wire
const (
	FamilyInet  uint16 = 2
	FamilyInet6 uint16 = 10
)

// SockAddr is a socket address, one of *SockAddrIn or *SockAddrIn6.
// The set of variants is closed; decoding any other family fails with ErrUnsupportedVariant.
type SockAddr interface {
	// Family returns the wire discriminant of the variant
	Family() uint16
	// AddrPort converts the address to a netip.AddrPort
	AddrPort() netip.AddrPort
	// String returns the address in host:port notation
	String() string

	payloadLen() int
	pushPayload(buf []byte)
	pullPayload(buf []byte) error
}

// SockAddrCodec encodes a SockAddr as u16 family followed by the family payload.
// A nil address is encoded as the unspecified IPv4 address.
var SockAddrCodec Codec[SockAddr] = sockAddrCodec{}

// SockAddrIn is an IPv4 socket address
type SockAddrIn struct {
	Port uint16
	Addr [4]byte
}

// SockAddrIn6 is an IPv6 socket address
type SockAddrIn6 struct {
	Port     uint16
	FlowInfo uint32
	Addr     [16]byte
	ScopeID  uint32
}

// SockAddrFrom converts a netip.AddrPort. IPv4 and IPv4-mapped IPv6 addresses become *SockAddrIn.
func SockAddrFrom(ap netip.AddrPort) SockAddr {
	addr := ap.Addr()
	if addr.Is4() || addr.Is4In6() {
		return &SockAddrIn{Port: ap.Port(), Addr: addr.Unmap().As4()}
	}
	return &SockAddrIn6{Port: ap.Port(), Addr: addr.As16()}
}

// ParseSockAddr parses "ip:port", "[ipv6]:port" or a bare ip (port 0)
func ParseSockAddr(s string) (SockAddr, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return SockAddrFrom(ap), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid socket address %q", s)
	}
	return SockAddrFrom(netip.AddrPortFrom(addr, 0)), nil
}

// --------------------------------------------------------------------------
// IPv4
// --------------------------------------------------------------------------

func (s *SockAddrIn) Family() uint16 { return FamilyInet }

func (s *SockAddrIn) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4(s.Addr), s.Port)
}

func (s *SockAddrIn) String() string { return s.AddrPort().String() }

// MarshalText renders the address in host:port notation
func (s *SockAddrIn) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SockAddrIn) payloadLen() int { return 2 + 4 }

func (s *SockAddrIn) pushPayload(buf []byte) {
	binary.BigEndian.PutUint16(buf, s.Port)
	copy(buf[2:6], s.Addr[:])
}

func (s *SockAddrIn) pullPayload(buf []byte) error {
	if len(buf) < 6 {
		return truncated("inet address", 6, len(buf))
	}
	s.Port = binary.BigEndian.Uint16(buf)
	copy(s.Addr[:], buf[2:6])
	return nil
}

// --------------------------------------------------------------------------
// IPv6
// --------------------------------------------------------------------------

func (s *SockAddrIn6) Family() uint16 { return FamilyInet6 }

func (s *SockAddrIn6) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom16(s.Addr), s.Port)
}

func (s *SockAddrIn6) String() string { return s.AddrPort().String() }

func (s *SockAddrIn6) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SockAddrIn6) payloadLen() int { return 2 + 4 + 16 + 4 }

func (s *SockAddrIn6) pushPayload(buf []byte) {
	binary.BigEndian.PutUint16(buf, s.Port)
	binary.BigEndian.PutUint32(buf[2:], s.FlowInfo)
	copy(buf[6:22], s.Addr[:])
	binary.BigEndian.PutUint32(buf[22:], s.ScopeID)
}

func (s *SockAddrIn6) pullPayload(buf []byte) error {
	if len(buf) < 26 {
		return truncated("inet6 address", 26, len(buf))
	}
	s.Port = binary.BigEndian.Uint16(buf)
	s.FlowInfo = binary.BigEndian.Uint32(buf[2:])
	copy(s.Addr[:], buf[6:22])
	s.ScopeID = binary.BigEndian.Uint32(buf[22:])
	return nil
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

type sockAddrCodec struct{}

func (sockAddrCodec) Len(v *SockAddr) int {
	if *v == nil {
		return 2 + (&SockAddrIn{}).payloadLen()
	}
	return 2 + (*v).payloadLen()
}

func (sockAddrCodec) Push(v *SockAddr, buf []byte) int {
	addr := *v
	if addr == nil {
		addr = &SockAddrIn{}
	}
	binary.BigEndian.PutUint16(buf, addr.Family())
	addr.pushPayload(buf[2:])
	return 2 + addr.payloadLen()
}

// Pull allocates the variant in a, so a decoded address is released with the rest of the message
func (sockAddrCodec) Pull(buf []byte, a *arena.Arena, v *SockAddr) (int, error) {
	if len(buf) < 2 {
		return 0, truncated("address family", 2, len(buf))
	}
	var addr SockAddr
	switch family := binary.BigEndian.Uint16(buf); family {
	case FamilyInet:
		in, err := arena.NewObject[SockAddrIn](a)
		if err != nil {
			return 0, errors.Wrap(err, "inet address")
		}
		addr = in
	case FamilyInet6:
		in6, err := arena.NewObject[SockAddrIn6](a)
		if err != nil {
			return 0, errors.Wrap(err, "inet6 address")
		}
		addr = in6
	default:
		return 0, unsupported("address family %d", family)
	}
	if err := addr.pullPayload(buf[2:]); err != nil {
		return 0, err
	}
	*v = addr
	return 2 + addr.payloadLen(), nil
}
