package control

import "sync/atomic"

// MetricsRegistry holds the proxy's runtime counters: how many client
// connections have been accepted, and how many were rejected before a
// tunnel could be established (bad CONNECT line, disallowed port, DNS
// failure, or upstream connect failure).
type MetricsRegistry struct {
	acceptedTotal atomic.Int64
	rejectedTotal atomic.Int64
}

// NewMetricsRegistry creates a zeroed registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{}
}

// IncAccepted records one more accepted connection and returns the new total.
func (mr *MetricsRegistry) IncAccepted() int64 { return mr.acceptedTotal.Add(1) }

// IncRejected records one more rejected connection and returns the new total.
func (mr *MetricsRegistry) IncRejected() int64 { return mr.rejectedTotal.Add(1) }

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	AcceptedTotal int64
	RejectedTotal int64
}

// GetSnapshot returns the current value of every counter.
func (mr *MetricsRegistry) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		AcceptedTotal: mr.acceptedTotal.Load(),
		RejectedTotal: mr.rejectedTotal.Load(),
	}
}
