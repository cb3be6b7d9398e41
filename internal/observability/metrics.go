package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu             sync.Mutex
	requestCount   map[string]int64
	errorCount     map[string]int64
	deliveryCount  map[string]int64
	deliveryFailed map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:   make(map[string]int64),
		errorCount:     make(map[string]int64),
		deliveryCount:  make(map[string]int64),
		deliveryFailed: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
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

// RecordDelivery counts a successful event push to one recipient.
func (m *Metrics) RecordDelivery(role, eventType string) {
	if m == nil {
		return
	}
	key := role + "|" + eventType
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryCount[key]++
}

// RecordDeliveryFailure counts an evicted connection.
func (m *Metrics) RecordDeliveryFailure(role string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryFailed[role]++
}

// DeliveryFailures returns the eviction count recorded for a role.
func (m *Metrics) DeliveryFailures(role string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryFailed[role]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
