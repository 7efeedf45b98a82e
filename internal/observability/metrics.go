package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics keeps per-route request and error counters in memory.
type Metrics struct {
	mu         sync.Mutex
	started    time.Time
	requests   map[string]*routeStats
	errorCount map[string]int64
}

type routeStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// RouteSnapshot is the exported view of one method|route|status bucket.
type RouteSnapshot struct {
	Key       string  `json:"key"`
	Count     int64   `json:"count"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Requests      []RouteSnapshot  `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:    time.Now(),
		requests:   make(map[string]*routeStats),
		errorCount: make(map[string]int64),
	}
}

// RecordRequest counts a finished request and its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := method + "|" + route + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, ok := m.requests[key]
	if !ok {
		stats = &routeStats{}
		m.requests[key] = stats
	}
	stats.count++
	stats.total += duration
	if duration > stats.max {
		stats.max = duration
	}
}

// RecordError counts an error response by its code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	key := method + "|" + route + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the counters, sorted by key.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      make([]RouteSnapshot, 0, len(m.requests)),
		Errors:        make(map[string]int64, len(m.errorCount)),
	}
	for key, stats := range m.requests {
		snap.Requests = append(snap.Requests, RouteSnapshot{
			Key:       key,
			Count:     stats.count,
			AvgMillis: millis(stats.total) / float64(stats.count),
			MaxMillis: millis(stats.max),
		})
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Key < snap.Requests[j].Key })
	for key, n := range m.errorCount {
		snap.Errors[key] = n
	}
	return snap
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
