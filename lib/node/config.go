package node

import (
	"net/netip"
	"strings"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
)

// Config is the static configuration of a node
type Config struct {
	PNN       uint32              // Physical node number of this node
	Nodes     []protocol.SockAddr // Address of every node, indexed by pnn
	PublicIPs []PublicAddress     // Public addresses served by the cluster
	Databases []DatabaseConfig    // Databases attached at start
}

// PublicAddress is a public address the cluster hosts on one of its nodes
type PublicAddress struct {
	Addr  protocol.SockAddr
	Mask  uint32
	Iface string
}

// DatabaseConfig names a database and its flags
type DatabaseConfig struct {
	Name  string
	Flags uint8
}

// Validate checks the node configuration for consistency
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errors.New("no nodes configured")
	}
	if int(c.PNN) >= len(c.Nodes) {
		return errors.Newf("pnn %d out of range, %d nodes configured", c.PNN, len(c.Nodes))
	}
	seen := make(map[string]struct{}, len(c.Databases))
	for _, db := range c.Databases {
		if db.Name == "" {
			return errors.New("database without name")
		}
		if _, dup := seen[db.Name]; dup {
			return errors.Newf("database %q configured twice", db.Name)
		}
		seen[db.Name] = struct{}{}
	}
	return nil
}

// ParsePublicAddress parses "address/mask@iface", e.g. "10.0.0.1/24@eth0"
func ParsePublicAddress(s string) (PublicAddress, error) {
	prefixStr, iface, found := strings.Cut(s, "@")
	if !found || iface == "" {
		return PublicAddress{}, errors.Newf("public address %q: missing interface", s)
	}
	prefix, err := netip.ParsePrefix(prefixStr)
	if err != nil {
		return PublicAddress{}, errors.Wrapf(err, "public address %q", s)
	}
	return PublicAddress{
		Addr:  protocol.SockAddrFrom(netip.AddrPortFrom(prefix.Addr(), 0)),
		Mask:  uint32(prefix.Bits()),
		Iface: iface,
	}, nil
}

// ParseDatabase parses "name" or "name:flag[+flag]" with the flags persistent, readonly,
// sticky and replicated
func ParseDatabase(s string) (DatabaseConfig, error) {
	name, flagsStr, _ := strings.Cut(s, ":")
	if name == "" {
		return DatabaseConfig{}, errors.Newf("database %q: empty name", s)
	}
	db := DatabaseConfig{Name: name}
	if flagsStr == "" {
		return db, nil
	}
	for _, f := range strings.Split(flagsStr, "+") {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "persistent":
			db.Flags |= protocol.DBFlagPersistent
		case "readonly":
			db.Flags |= protocol.DBFlagReadonly
		case "sticky":
			db.Flags |= protocol.DBFlagSticky
		case "replicated":
			db.Flags |= protocol.DBFlagReplicated
		default:
			return DatabaseConfig{}, errors.Newf("database %q: unknown flag %q", s, f)
		}
	}
	return db, nil
}
