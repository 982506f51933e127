package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Attempt outcomes recorded by the session core.
const (
	OutcomeOK           = "ok"
	OutcomeRejected     = "rejected"
	OutcomeNetwork      = "network"
	OutcomeTimeout      = "timeout"
	OutcomeCancelled    = "cancelled"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDeduplicated = "deduplicated"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	attempts     map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		attempts:     make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordAttempt counts one verify / exchange / probe attempt by outcome.
func (m *Metrics) RecordAttempt(op, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[op+"|"+outcome]++
}

// Attempts returns the count recorded for op and outcome.
func (m *Metrics) Attempts(op, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[op+"|"+outcome]
}

// RecordRequest increments counters for shell requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies all counters, keyed "<kind>|<key>", sorted for stable output.
func (m *Metrics) Snapshot() []Counter {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Counter, 0, len(m.attempts)+len(m.requestCount)+len(m.errorCount))
	for k, v := range m.attempts {
		out = append(out, Counter{Name: "attempt|" + k, Value: v})
	}
	for k, v := range m.requestCount {
		out = append(out, Counter{Name: "request|" + k, Value: v})
	}
	for k, v := range m.errorCount {
		out = append(out, Counter{Name: "error|" + k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counter is a named counter value.
type Counter struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
