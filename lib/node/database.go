package node

import (
	"slices"
	"strings"
	"sync"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
)

// record is one stored record of a database
type record struct {
	header protocol.LTDBHeader
	data   []byte
	hops   uint32 // Number of dmaster changes seen for this key
}

// database is an attached in-memory database
type database struct {
	id    uint32
	name  string
	flags uint8

	mu      sync.Mutex
	records map[string]*record
	locks   *lockStats
	hops    *CountHistogram
	hot     *hotKeys
}

// newDatabase creates an empty database, its lock statistics are added to the node totals in parent
func newDatabase(cfg DatabaseConfig, stats *Stats) *database {
	id := DatabaseID(cfg.Name)
	return &database{
		id:      id,
		name:    cfg.Name,
		flags:   cfg.Flags,
		records: make(map[string]*record),
		locks:   newLockStats(stats.registry, "db."+cfg.Name+".locks", stats.locks),
		hops:    NewCountHistogram(),
		hot:     newHotKeys(protocol.MaxHotKeys),
	}
}

// lmasterOf returns the location master of key in vnnmap
func lmasterOf(key []byte, vnnmap []uint32) (uint32, bool) {
	if len(vnnmap) == 0 {
		return 0, false
	}
	return vnnmap[hashBytes(key)%uint32(len(vnnmap))], true
}

// sortedKeys returns the keys of the database in ascending order. Callers hold db.mu.
func (db *database) sortedKeys() []string {
	keys := make([]string, 0, len(db.records))
	for k := range db.records {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	return keys
}

// pull returns the records whose location master is lmaster, all records for protocol.LMasterAny
func (db *database) pull(lmaster uint32, vnnmap []uint32) []protocol.Record {
	unlock := db.locks.lock(&db.mu)
	defer unlock()

	var out []protocol.Record
	for _, k := range db.sortedKeys() {
		key := []byte(k)
		if lmaster != protocol.LMasterAny {
			if lm, ok := lmasterOf(key, vnnmap); !ok || lm != lmaster {
				continue
			}
		}
		rec := db.records[k]
		out = append(out, protocol.Record{Key: key, Value: protocol.JoinLTDBRecord(&rec.header, rec.data)})
	}
	return out
}

// traverse returns all records, records without data only if withEmpty is set
func (db *database) traverse(withEmpty bool) []protocol.Record {
	unlock := db.locks.lock(&db.mu)
	defer unlock()

	var out []protocol.Record
	for _, k := range db.sortedKeys() {
		rec := db.records[k]
		if len(rec.data) == 0 && !withEmpty {
			continue
		}
		out = append(out, protocol.Record{Key: []byte(k), Value: protocol.JoinLTDBRecord(&rec.header, rec.data)})
	}
	return out
}

// push merges records into the database. Either all records are valid and merged or none is.
func (db *database) push(records []protocol.Record) (int, error) {
	type parsed struct {
		key    string
		header protocol.LTDBHeader
		data   []byte
	}

	// validate the whole batch before anything is applied
	batch := make([]parsed, len(records))
	for i, r := range records {
		if len(r.Key) == 0 {
			return 0, errors.Wrapf(ErrInvalidArgument, "record %d has an empty key", i)
		}
		h, data, err := protocol.SplitLTDBRecord(r.Value)
		if err != nil {
			return 0, errors.Wrapf(err, "record %d", i)
		}
		batch[i] = parsed{key: string(r.Key), header: h, data: slices.Clone(data)}
	}

	unlock := db.locks.lock(&db.mu)
	defer unlock()

	applied := 0
	for _, p := range batch {
		old, exists := db.records[p.key]
		if exists && old.header.RSN >= p.header.RSN {
			continue
		}

		rec := &record{header: p.header, data: p.data}
		if exists {
			rec.hops = old.hops
			if old.header.DMaster != p.header.DMaster {
				rec.hops++
				db.hops.AddSample(uint64(rec.hops))
				db.hot.Observe([]byte(p.key), rec.hops)
			}
		}
		db.records[p.key] = rec
		applied++
	}
	return applied, nil
}

// statistics returns a snapshot of the database statistics
func (db *database) statistics() protocol.DBStatistics {
	db.mu.Lock()
	hot := db.hot.Snapshot()
	db.mu.Unlock()

	return protocol.DBStatistics{
		Locks:          db.locks.snapshot(),
		HopCountBucket: db.hops.Buckets(),
		HotKeys:        hot,
	}
}

// size returns the number of stored records
func (db *database) size() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}
