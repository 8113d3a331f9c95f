package protocol

import (
	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/cockroachdb/errors"
)

// Decode errors. Every error returned by a pull operation matches exactly one of these with errors.Is.
var (
	// ErrTruncatedInput is returned when the buffer ends before the encoding is complete
	ErrTruncatedInput = errors.New("truncated input")
	// ErrMalformedLength is returned when a length or count field is inconsistent with the buffer or the limits
	ErrMalformedLength = errors.New("malformed length")
	// ErrUnsupportedVariant is returned for unknown discriminants (address family, message kind)
	ErrUnsupportedVariant = errors.New("unsupported variant")
	// ErrAllocationFailure is returned when the arena refuses an allocation
	ErrAllocationFailure = arena.ErrAllocationFailure
)

// ErrBadHeader is returned for a packet header with wrong magic or version. It matches ErrMalformedLength.
var ErrBadHeader = errors.Mark(errors.New("bad packet header"), ErrMalformedLength)

// ErrorClass returns a short name for the class of a decode error, used for metrics labels and reply status codes
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTruncatedInput):
		return "truncated"
	case errors.Is(err, ErrMalformedLength):
		return "malformed"
	case errors.Is(err, ErrUnsupportedVariant):
		return "unsupported"
	case errors.Is(err, ErrAllocationFailure):
		return "allocation"
	default:
		return "other"
	}
}

func truncated(what string, need, have int) error {
	return errors.Wrapf(ErrTruncatedInput, "%s: need %d bytes, have %d", what, need, have)
}

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedLength, format, args...)
}

func unsupported(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedVariant, format, args...)
}
