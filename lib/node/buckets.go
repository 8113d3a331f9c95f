package node

import (
	"math"
	"math/bits"
	"sync"

	"github.com/ValentinKolb/dctl/lib/protocol"
)

// ----------------------------------------------------------------------------
// CountHistogram
// ----------------------------------------------------------------------------

// CountHistogram tracks the distribution of counts (hop counts, lock wait times in
// microseconds) in protocol.MaxCountBuckets buckets. Bucket 0 holds zero, bucket i
// holds values in [2^(i-1), 2^i) and the last bucket holds everything larger.
type CountHistogram struct {
	mutex   sync.RWMutex
	buckets [protocol.MaxCountBuckets]uint32
	count   uint64
	sum     uint64
	max     uint64
}

// NewCountHistogram creates an empty histogram
func NewCountHistogram() *CountHistogram {
	return &CountHistogram{}
}

// bucketOf returns the bucket index of v
func bucketOf(v uint64) int {
	return min(bits.Len64(v), protocol.MaxCountBuckets-1)
}

// upperBound returns the smallest value no longer counted in bucket i
func upperBound(i int) uint64 {
	if i == 0 {
		return 1
	}
	return uint64(1) << i
}

// AddSample adds a sample to the histogram
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) AddSample(v uint64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if b := &h.buckets[bucketOf(v)]; *b < math.MaxUint32 {
		*b++
	}
	h.count++
	h.sum += v
	h.max = max(h.max, v)
}

// Buckets returns a copy of the bucket counters in wire layout
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) Buckets() [protocol.MaxCountBuckets]uint32 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.buckets
}

// Count returns the total number of samples
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) Count() uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// Max returns the largest sample
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) Max() uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.max
}

// Average returns the average across all samples
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) Average() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return float64(h.sum) / float64(h.count)
}

// PercentileEstimate returns the upper bound of the bucket holding the given percentile (0-100)
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) PercentileEstimate(percentile int) uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	targetCount := uint64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulativeCount := uint64(0)

	for i, count := range h.buckets {
		cumulativeCount += uint64(count)
		if cumulativeCount >= targetCount {
			if i == len(h.buckets)-1 {
				return h.max
			}
			return upperBound(i)
		}
	}
	return h.max
}

// Reset clears all histogram data
//
// Thread-safe: This method is safe for concurrent use
func (h *CountHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets = [protocol.MaxCountBuckets]uint32{}
	h.count = 0
	h.sum = 0
	h.max = 0
}
