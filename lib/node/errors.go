package node

import "github.com/cockroachdb/errors"

var (
	// ErrNoSuchDatabase is returned for a database id that is not attached
	ErrNoSuchDatabase = errors.New("no such database")
	// ErrUnknownTunable is returned for a tunable name that does not exist
	ErrUnknownTunable = errors.New("unknown tunable")
	// ErrInvalidArgument is returned for requests the node cannot apply
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBansDisabled is returned by SetBanState while the EnableBans tunable is 0
	ErrBansDisabled = errors.New("bans are disabled")
	// ErrClosed is returned once the node was closed
	ErrClosed = errors.New("node closed")
)
