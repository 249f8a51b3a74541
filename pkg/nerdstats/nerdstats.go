// Package nerdstats snapshots Go runtime statistics for rpcchaind's
// shutdown report, grounded on olla's pkg/nerdstats.
package nerdstats

import (
	"runtime"
	"time"
)

// NerdStats is a point-in-time snapshot of memory, GC and goroutine
// figures for the running process.
type NerdStats struct {
	HeapAlloc    uint64
	HeapSys      uint64
	HeapInuse    uint64
	HeapReleased uint64
	TotalAlloc   uint64
	Mallocs      uint64
	Frees        uint64

	NumGC         uint32
	TotalGCTime   time.Duration
	GCCPUFraction float64

	NumGoroutines int

	NumCPU     int
	GOMAXPROCS int
	GoVersion  string
	Uptime     time.Duration
}

// Snapshot reads current runtime.MemStats and goroutine/CPU figures
// relative to startTime.
func Snapshot(startTime time.Time) *NerdStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &NerdStats{
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		HeapInuse:    m.HeapInuse,
		HeapReleased: m.HeapReleased,
		TotalAlloc:   m.TotalAlloc,
		Mallocs:      m.Mallocs,
		Frees:        m.Frees,

		NumGC:         m.NumGC,
		TotalGCTime:   time.Duration(m.PauseTotalNs),
		GCCPUFraction: m.GCCPUFraction,

		NumGoroutines: runtime.NumGoroutine(),

		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(startTime),
	}
}

// GetMemoryPressure gives a coarse LOW/MEDIUM/HIGH assessment from heap
// usage ratio and allocation churn.
func (ps *NerdStats) GetMemoryPressure() string {
	heapUsageRatio := float64(ps.HeapInuse) / float64(ps.HeapSys)
	allocsPerFree := float64(ps.Mallocs) / float64(ps.Frees+1)

	if heapUsageRatio > 0.9 && allocsPerFree > 1.5 {
		return "HIGH"
	} else if heapUsageRatio > 0.7 || allocsPerFree > 1.2 {
		return "MEDIUM"
	}
	return "LOW"
}

// GetGoroutineHealthStatus classifies goroutine count against
// conservative thresholds for a process with one pipeline's worth of
// background work (selector scanner, cache janitor, event bus).
func (ps *NerdStats) GetGoroutineHealthStatus() string {
	if ps.NumGoroutines > 1000 {
		return "CONCERNING"
	} else if ps.NumGoroutines > 500 {
		return "ELEVATED"
	} else if ps.NumGoroutines > 100 {
		return "NORMAL"
	}
	return "HEALTHY"
}
