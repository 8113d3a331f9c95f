package node

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// hashBytes generates the 32 bit FNV-1a hash of b.
// It decides the location master of a record key and the id of a database name.
func hashBytes(b []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)

	hash := uint32(offset32)
	for _, c := range b {
		hash ^= uint32(c)
		hash *= prime32
	}
	return hash
}

// DatabaseID returns the id of the database with the given name
func DatabaseID(name string) uint32 {
	return hashBytes([]byte(name))
}
