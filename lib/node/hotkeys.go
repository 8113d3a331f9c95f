package node

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/ValentinKolb/dctl/lib/protocol"
)

// hotKey is one tracked key with its access count
type hotKey struct {
	key   string
	count uint32
	index int // Index in the heap, maintained by heap package
}

// hotKeys keeps the limit most frequently written keys of a database.
// It combines a min heap ordered by count with a map for key based access, so the
// coldest tracked key is replaced in O(log n) once a hotter key shows up.
//
// Not thread-safe: callers hold the database lock.
type hotKeys struct {
	limit    int
	items    []*hotKey
	itemsMap map[string]*hotKey
}

// newHotKeys creates a tracker for at most limit keys
func newHotKeys(limit int) *hotKeys {
	return &hotKeys{
		limit:    limit,
		items:    make([]*hotKey, 0, limit),
		itemsMap: make(map[string]*hotKey, limit),
	}
}

// Len returns the number of tracked keys (part of heap.Interface)
func (h *hotKeys) Len() int { return len(h.items) }

// Less orders the coldest key first (part of heap.Interface)
func (h *hotKeys) Less(i, j int) bool {
	return h.items[i].count < h.items[j].count
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *hotKeys) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (h *hotKeys) Push(x interface{}) {
	item := x.(*hotKey)
	item.index = len(h.items)
	h.items = append(h.items, item)
	h.itemsMap[item.key] = item
}

// Pop removes and returns the coldest item (part of heap.Interface)
func (h *hotKeys) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, item.key)
	return item
}

// Observe records the current count of key. Keys colder than every tracked key are ignored once the tracker is full.
func (h *hotKeys) Observe(key []byte, count uint32) {
	if h.limit <= 0 {
		return
	}
	if item, exists := h.itemsMap[string(key)]; exists {
		item.count = count
		heap.Fix(h, item.index)
		return
	}

	if len(h.items) >= h.limit {
		if h.items[0].count >= count {
			return
		}
		heap.Pop(h)
	}
	heap.Push(h, &hotKey{key: string(key), count: count})
}

// Remove stops tracking key
func (h *hotKeys) Remove(key []byte) {
	if item, exists := h.itemsMap[string(key)]; exists {
		heap.Remove(h, item.index)
	}
}

// Snapshot returns the tracked keys, hottest first
func (h *hotKeys) Snapshot() []protocol.HotKey {
	if len(h.items) == 0 {
		return nil
	}
	out := make([]protocol.HotKey, len(h.items))
	for i, item := range h.items {
		out[i] = protocol.HotKey{Count: item.count, Key: []byte(item.key)}
	}
	slices.SortFunc(out, func(a, b protocol.HotKey) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return slices.Compare(a.Key, b.Key)
	})
	return out
}
