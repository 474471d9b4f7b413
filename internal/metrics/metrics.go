package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex      sync.RWMutex
	completed  map[string]int64
	selections map[string]int64
	failures   map[string]int64
	durations  map[string][]time.Duration
	liveness   map[string]bool
	rejected   int64
	startTime  time.Time
}

// Snapshot is a point-in-time view of dispatch activity, safe to
// serialize to JSON.
type Snapshot struct {
	TotalCompleted int64                     `json:"total_completed"`
	TotalRejected  int64                     `json:"total_rejected"`
	Uptime         time.Duration             `json:"uptime"`
	Failures       map[string]int64          `json:"failures"`
	Backends       map[string]BackendMetrics `json:"backends"`
	Strategy       string                    `json:"strategy"`
}

type BackendMetrics struct {
	Completed   int64         `json:"completed"`
	Selections  int64         `json:"selections"`
	Alive       bool          `json:"alive"`
	AvgDuration time.Duration `json:"avg_duration"`
	P50Duration time.Duration `json:"p50_duration"`
	P95Duration time.Duration `json:"p95_duration"`
	P99Duration time.Duration `json:"p99_duration"`
}

func (m *Metrics) RecordSelection(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[backend]++
}

func (m *Metrics) RecordCompletion(backend string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.completed[backend]++
	m.durations[backend] = append(m.durations[backend], duration)

	if len(m.durations[backend]) > 1000 {
		m.durations[backend] = m.durations[backend][1:]
	}
}

func (m *Metrics) RecordFailure(kind string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[kind]++
}

func (m *Metrics) RecordRejection() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejected++
}

func (m *Metrics) UpdateLiveness(backend string, alive bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.liveness[backend] = alive
}

func (m *Metrics) Snapshot(strategy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRejected: m.rejected,
		Uptime:        time.Since(m.startTime),
		Failures:      make(map[string]int64, len(m.failures)),
		Backends:      make(map[string]BackendMetrics),
		Strategy:      strategy,
	}

	for kind, count := range m.failures {
		snap.Failures[kind] = count
	}

	// Collect all backend addresses seen by any metric
	allBackends := make(map[string]bool)
	for backend := range m.completed {
		allBackends[backend] = true
	}
	for backend := range m.selections {
		allBackends[backend] = true
	}
	for backend := range m.liveness {
		allBackends[backend] = true
	}

	for backend := range allBackends {
		snap.TotalCompleted += m.completed[backend]

		bm := BackendMetrics{
			Completed:  m.completed[backend],
			Selections: m.selections[backend],
			Alive:      m.liveness[backend],
		}

		durations := m.durations[backend]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgDuration = average(sorted)
			bm.P50Duration = percentile(sorted, 0.50)
			bm.P95Duration = percentile(sorted, 0.95)
			bm.P99Duration = percentile(sorted, 0.99)
		}

		snap.Backends[backend] = bm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		completed:  make(map[string]int64),
		selections: make(map[string]int64),
		failures:   make(map[string]int64),
		durations:  make(map[string][]time.Duration),
		liveness:   make(map[string]bool),
		startTime:  time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
