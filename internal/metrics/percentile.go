package metrics

import (
	"math/rand/v2"
	"sort"
	"sync"
)

// ReservoirSampler maintains a fixed-size, memory-bounded sample of call
// latencies for p50/p95/p99 estimation, copied near-verbatim from olla's
// stats.ReservoirSampler — reservoir sampling is exactly the right
// structure for spec.md §3's "aggregate latency percentiles maintained
// over a bounded window" and needed no change beyond the package move.
type ReservoirSampler struct {
	mu         sync.Mutex
	samples    []int64
	sampleSize int
	count      int64
}

func NewReservoirSampler(sampleSize int) *ReservoirSampler {
	if sampleSize <= 0 {
		sampleSize = 200
	}
	return &ReservoirSampler{sampleSize: sampleSize, samples: make([]int64, 0, sampleSize)}
}

func (rs *ReservoirSampler) Add(valueMs int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.count++
	if len(rs.samples) < rs.sampleSize {
		rs.samples = append(rs.samples, valueMs)
		return
	}
	j := rand.Int64N(rs.count)
	if j < int64(rs.sampleSize) {
		rs.samples[j] = valueMs
	}
}

func (rs *ReservoirSampler) Percentiles() (p50, p95, p99 int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.samples) == 0 {
		return 0, 0, 0
	}

	sorted := make([]int64, len(rs.samples))
	copy(sorted, rs.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int64 {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return sorted[i]
	}
	return idx(50), idx(95), idx(99)
}

func (rs *ReservoirSampler) Count() int64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.count
}
