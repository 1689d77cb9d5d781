package services

import (
	"maps"
	"sync"
	"time"
)

const defaultCallLogEntries = 1000

// IntegrationCall is one storefront API call.
type IntegrationCall struct {
	Operation string
	At        time.Time
	Duration  time.Duration
	Failed    bool
}

// IntegrationMetricsSnapshot summarises storefront API usage. Totals cover every
// call since the last reset; LastHourCalls and AverageLatency only cover the
// calls still held in the log.
type IntegrationMetricsSnapshot struct {
	TotalCalls       int64
	CallsByOperation map[string]int64
	TotalErrors      int64
	LastHourCalls    int
	AverageLatency   time.Duration
	Since            time.Time
}

type integrationCallLog struct {
	mu      sync.Mutex
	entries []IntegrationCall
	next    int
	full    bool

	total  int64
	errors int64
	byOp   map[string]int64
	since  time.Time
	clock  func() time.Time
}

// NewIntegrationCallLog keeps the last capacity calls in a ring buffer.
func NewIntegrationCallLog(capacity int, clock func() time.Time) IntegrationMetrics {
	if capacity <= 0 {
		capacity = defaultCallLogEntries
	}
	if clock == nil {
		clock = time.Now
	}
	return &integrationCallLog{
		entries: make([]IntegrationCall, capacity),
		byOp:    make(map[string]int64),
		since:   clock().UTC(),
		clock:   clock,
	}
}

func (l *integrationCallLog) Record(call IntegrationCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if call.At.IsZero() {
		call.At = l.clock().UTC()
	}
	l.entries[l.next] = call
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.total++
	if call.Failed {
		l.errors++
	}
	l.byOp[call.Operation]++
}

func (l *integrationCallLog) Snapshot(now time.Time) IntegrationMetricsSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.next
	if l.full {
		held = len(l.entries)
	}
	cutoff := now.Add(-time.Hour)
	var (
		lastHour int
		latency  time.Duration
	)
	for _, call := range l.entries[:held] {
		latency += call.Duration
		if call.At.After(cutoff) {
			lastHour++
		}
	}
	snapshot := IntegrationMetricsSnapshot{
		TotalCalls:       l.total,
		CallsByOperation: maps.Clone(l.byOp),
		TotalErrors:      l.errors,
		LastHourCalls:    lastHour,
		Since:            l.since,
	}
	if held > 0 {
		snapshot.AverageLatency = latency / time.Duration(held)
	}
	return snapshot
}

func (l *integrationCallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.next = 0
	l.full = false
	l.total = 0
	l.errors = 0
	l.byOp = make(map[string]int64)
	l.since = l.clock().UTC()
}
