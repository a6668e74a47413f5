package main

import (
	"slices"
	"sync"
	"time"
)

// LatencyRecorder keeps operation latencies for percentile calculation.
type LatencyRecorder struct {
	mu        sync.Mutex
	latencies []time.Duration
}

// Record adds one latency.
func (r *LatencyRecorder) Record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latencies = append(r.latencies, d)
}

// Count returns the number of recorded latencies.
func (r *LatencyRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.latencies)
}

// Percentile returns the latency below which the given share (0..1) of recorded latencies falls.
func (r *LatencyRecorder) Percentile(percentile float64) time.Duration {
	r.mu.Lock()
	sorted := slices.Clone(r.latencies)
	r.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}

	slices.Sort(sorted)

	index := int(float64(len(sorted)-1) * percentile)
	index = max(0, min(index, len(sorted)-1))

	return sorted[index]
}
