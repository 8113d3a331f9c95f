package base

import (
	"io"
	"net"

	"github.com/ValentinKolb/dctl/lib/protocol"
)

// writePacket writes one packet to the connection:
// - 32 bytes: protocol.ReqHeader (length covers header and body)
// - N bytes: body
func writePacket(conn net.Conn, h protocol.ReqHeader, body []byte) error {
	h.Length = uint32(protocol.HeaderSize + len(body))
	header := protocol.Marshal(&h)

	b := net.Buffers{header, body}
	_, err := b.WriteTo(conn)
	return err
}

// readPacket reads one packet from the connection using the provided buffer for the body.
// If the buffer is too small, a new buffer is allocated. Packets longer than maxLength are
// rejected before the body is read.
func readPacket(conn net.Conn, buf []byte, maxLength int) (protocol.ReqHeader, []byte, error) {
	var head [protocol.HeaderSize]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return protocol.ReqHeader{}, nil, err
	}

	h, err := protocol.ParseHeader(head[:], maxLength)
	if err != nil {
		return protocol.ReqHeader{}, nil, err
	}

	bodyLen := int(h.Length) - protocol.HeaderSize
	if bodyLen == 0 {
		return h, []byte{}, nil
	}

	if len(buf) < bodyLen {
		buf = make([]byte, bodyLen)
	}
	if _, err := io.ReadFull(conn, buf[:bodyLen]); err != nil {
		return protocol.ReqHeader{}, nil, err
	}
	return h, buf[:bodyLen], nil
}
