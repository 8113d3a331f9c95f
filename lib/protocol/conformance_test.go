package protocol_test

import (
	"testing"

	protocoltesting "github.com/ValentinKolb/dctl/lib/protocol/testing"
)

// TestCodecConformance runs the conformance suite over every message kind
func TestCodecConformance(t *testing.T) {
	protocoltesting.RunCodecTests(t, 1)
}
