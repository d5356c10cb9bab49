package metrics

import (
	"sort"
	"sync"
	"time"
)

// Outcome classifies how a guarded call ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	rejections    map[string]int64
	failures      map[string]int64
	timeouts      map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests  int64                    `json:"total_requests"`
	TotalRejected  int64                    `json:"total_rejected"`
	Uptime         time.Duration            `json:"uptime"`
	Targets        map[string]TargetMetrics `json:"targets"`
}

type TargetMetrics struct {
	Requests    int64         `json:"requests"`
	Rejections  int64         `json:"rejections"`
	Failures    int64         `json:"failures"`
	Timeouts    int64         `json:"timeouts"`
	State       string        `json:"state,omitempty"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		rejections:    make(map[string]int64),
		failures:      make(map[string]int64),
		timeouts:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests(target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[target]++
}

// RecordRejection counts a call the breaker refused before it was attempted.
func (m *Metrics) RecordRejection(target string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[target]++
}

func (m *Metrics) RecordCompletion(target string, duration time.Duration, statusCode int, outcome Outcome) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch outcome {
	case OutcomeFailure:
		m.failures[target]++
	case OutcomeTimeout:
		m.timeouts[target]++
	}

	m.responseTimes[target] = append(m.responseTimes[target], duration)

	if len(m.responseTimes[target]) > 1000 {
		m.responseTimes[target] = m.responseTimes[target][1:]
	}

	if statusCode > 0 {
		if m.statusCodes[target] == nil {
			m.statusCodes[target] = make(map[int]int64)
		}
		m.statusCodes[target][statusCode]++
	}
}

// Snapshot aggregates everything recorded so far. The caller supplies the
// current breaker state per target so the snapshot reflects live circuit
// health, not just traffic history.
func (m *Metrics) Snapshot(states map[string]string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:  time.Since(m.startTime),
		Targets: make(map[string]TargetMetrics),
	}

	allTargets := make(map[string]bool)
	for target := range m.requests {
		allTargets[target] = true
	}
	for target := range m.rejections {
		allTargets[target] = true
	}
	for target := range m.responseTimes {
		allTargets[target] = true
	}
	for target := range states {
		allTargets[target] = true
	}

	for target := range allTargets {
		snap.TotalRequests += m.requests[target]
		snap.TotalRejected += m.rejections[target]

		tm := TargetMetrics{
			Requests:    m.requests[target],
			Rejections:  m.rejections[target],
			Failures:    m.failures[target],
			Timeouts:    m.timeouts[target],
			State:       states[target],
			StatusCodes: m.statusCodes[target],
		}

		durations := m.responseTimes[target]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			tm.AvgResponse = average(sorted)
			tm.P50Response = percentile(sorted, 0.50)
			tm.P95Response = percentile(sorted, 0.95)
			tm.P99Response = percentile(sorted, 0.99)
		}

		snap.Targets[target] = tm
	}

	return snap
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
