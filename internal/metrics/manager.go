// Package metrics keeps in-process counters and timings, optionally
// persisted to sqlite so .stats survives restarts.
package metrics

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxSamples = 500 // keep last samples for percentile calculations

	// TopicCommand is the topic every bot command is recorded under
	TopicCommand = "command"
)

// MetricsManager holds every metric, keyed by "topic/function" paths.
type MetricsManager struct {
	mu          sync.RWMutex
	timings     map[string]*TimingMetric
	counters    map[string]*CounterMetric
	successFail map[string]*SuccessFailMetric
	started     time.Time

	db       *sql.DB
	stopSave chan struct{}
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the process-wide manager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates an empty manager.
func New() *MetricsManager {
	return &MetricsManager{
		timings:     make(map[string]*TimingMetric),
		counters:    make(map[string]*CounterMetric),
		successFail: make(map[string]*SuccessFailMetric),
		started:     time.Now(),
	}
}

// buildPath creates a normalized path from topic and function
func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", topic, function)
}

// RecordDuration records a duration directly
func (m *MetricsManager) RecordDuration(topic, function string, duration time.Duration) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.timings[path]
	if !exists {
		metric = &TimingMetric{Min: duration, Max: duration}
		m.timings[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Count++
	metric.Total += duration
	metric.Last = duration
	metric.Min = min(metric.Min, duration)
	metric.Max = max(metric.Max, duration)

	if len(metric.samples) < maxSamples {
		metric.samples = append(metric.samples, duration)
	} else {
		metric.samples[metric.sampleIdx] = duration
		metric.sampleIdx = (metric.sampleIdx + 1) % maxSamples
	}
}

// AddCounter adds to a counter
func (m *MetricsManager) AddCounter(topic, function string, delta int64) {
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.counters[path]
	if !exists {
		metric = &CounterMetric{}
		m.counters[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Value += delta
	metric.Last = time.Now()
}

// RecordSuccess records a successful operation
func (m *MetricsManager) RecordSuccess(topic, function string) {
	metric := m.outcome(buildPath(topic, function))
	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Success++
	metric.LastSuccess = time.Now()
}

// RecordFailure records a failed operation with a short reason
func (m *MetricsManager) RecordFailure(topic, function, reason string) {
	metric := m.outcome(buildPath(topic, function))
	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
}

func (m *MetricsManager) outcome(path string) *SuccessFailMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, exists := m.successFail[path]
	if !exists {
		metric = &SuccessFailMetric{FailureReasons: make(map[string]int64)}
		m.successFail[path] = metric
	}
	return metric
}

// Uptime returns how long the manager has existed.
func (m *MetricsManager) Uptime() time.Duration {
	return time.Since(m.started)
}

// Counter returns a counter's value.
func (m *MetricsManager) Counter(topic, function string) int64 {
	m.mu.RLock()
	metric := m.counters[buildPath(topic, function)]
	m.mu.RUnlock()
	if metric == nil {
		return 0
	}
	metric.mu.RLock()
	defer metric.mu.RUnlock()
	return metric.Value
}

// Snapshot copies every metric.
func (m *MetricsManager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Uptime:   m.Uptime(),
		Counters: make(map[string]int64, len(m.counters)),
		Timings:  make(map[string]TimingSnapshot, len(m.timings)),
		Outcomes: make(map[string]SuccessFailSnapshot, len(m.successFail)),
	}
	for path, c := range m.counters {
		c.mu.RLock()
		snap.Counters[path] = c.Value
		c.mu.RUnlock()
	}
	for path, t := range m.timings {
		snap.Timings[path] = t.snapshot()
	}
	for path, sf := range m.successFail {
		snap.Outcomes[path] = sf.snapshot()
	}
	return snap
}

// Commands summarizes the command topic, busiest first.
func (m *MetricsManager) Commands() []CommandStat {
	snap := m.Snapshot()
	prefix := TopicCommand + "/"

	var out []CommandStat
	for path, calls := range snap.Counters {
		name, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		st := CommandStat{Name: name, Calls: calls}
		if t, ok := snap.Timings[path]; ok {
			st.AvgMs, st.P95Ms = t.AvgMs, t.P95Ms
		}
		if sf, ok := snap.Outcomes[path]; ok {
			st.Failures = sf.Failures
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Outcomes returns success/failure counts for every function under topic,
// keyed by function name.
func (m *MetricsManager) Outcomes(topic string) map[string]SuccessFailSnapshot {
	snap := m.Snapshot()
	prefix := topic + "/"
	out := make(map[string]SuccessFailSnapshot)
	for path, sf := range snap.Outcomes {
		if name, ok := strings.CutPrefix(path, prefix); ok {
			out[name] = sf
		}
	}
	return out
}

func (t *TimingMetric) snapshot() TimingSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TimingSnapshot{
		Count:  t.Count,
		MinMs:  ms(t.Min),
		MaxMs:  ms(t.Max),
		LastMs: ms(t.Last),
	}
	if t.Count > 0 {
		s.AvgMs = ms(t.Total) / float64(t.Count)
	}
	if len(t.samples) > 0 {
		sorted := append([]time.Duration(nil), t.samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.P95Ms = ms(sorted[percentileIndex(len(sorted), 95)])
	}
	return s
}

func (sf *SuccessFailMetric) snapshot() SuccessFailSnapshot {
	sf.mu.RLock()
	defer sf.mu.RUnlock()

	s := SuccessFailSnapshot{Success: sf.Success, Failures: sf.Failures}
	if total := sf.Success + sf.Failures; total > 0 {
		s.SuccessRate = float64(sf.Success) / float64(total)
	}
	if len(sf.FailureReasons) > 0 {
		s.FailureReasons = make(map[string]int64, len(sf.FailureReasons))
		for k, v := range sf.FailureReasons {
			s.FailureReasons[k] = v
		}
	}
	return s
}

// percentileIndex is the nearest-rank index of the p-th percentile.
func percentileIndex(n, p int) int {
	idx := (n*p+99)/100 - 1
	return max(0, min(idx, n-1))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
