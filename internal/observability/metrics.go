package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	sessionsOpen  int64
	sessionsTotal int64
	broadcasts    int64
	droppedFrames int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
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

// SessionOpened tracks a live chat connection joining.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionsOpen++
	m.sessionsTotal++
}

// SessionClosed tracks a live chat connection leaving.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionsOpen > 0 {
		m.sessionsOpen--
	}
}

// RecordBroadcast counts one fanned-out message.
func (m *Metrics) RecordBroadcast() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts++
}

// RecordDroppedFrame counts a frame dropped for a saturated peer.
func (m *Metrics) RecordDroppedFrame() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedFrames++
}

// Snapshot returns current chat gauge/counter values.
func (m *Metrics) Snapshot() (open, total, broadcasts, dropped int64) {
	if m == nil {
		return 0, 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionsOpen, m.sessionsTotal, m.broadcasts, m.droppedFrames
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
