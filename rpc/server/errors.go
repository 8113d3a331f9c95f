package server

import (
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
)

// Reply status codes of failed controls (negated errno values)
const (
	StatusFailed      int32 = -1
	StatusNotFound    int32 = -2
	StatusNoProcess   int32 = -3
	StatusNoMemory    int32 = -12
	StatusInvalid     int32 = -22
	StatusUnsupported int32 = -95
)

var (
	// ErrUnsupportedControl is returned for opcodes without a handler
	ErrUnsupportedControl = errors.New("unsupported control")
	// ErrWrongNode is returned for controls addressed to another node
	ErrWrongNode = errors.New("control addressed to another node")
	// ErrWrongPayload is returned when a handler receives a payload of the wrong kind
	ErrWrongPayload = errors.New("unexpected payload")
)

// statusOf maps an error to the status of a failed control reply
func statusOf(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, protocol.ErrAllocationFailure):
		return StatusNoMemory
	case errors.IsAny(err, protocol.ErrTruncatedInput, protocol.ErrMalformedLength, protocol.ErrUnsupportedVariant,
		node.ErrInvalidArgument, ErrWrongPayload, ErrWrongNode):
		return StatusInvalid
	case errors.IsAny(err, node.ErrNoSuchDatabase, node.ErrUnknownTunable):
		return StatusNotFound
	case errors.Is(err, ErrUnsupportedControl):
		return StatusUnsupported
	default:
		return StatusFailed
	}
}
