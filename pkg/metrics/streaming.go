package metrics

import (
	"sync"
	"time"
)

// StreamingMetrics tracks performance metrics for event distribution and
// stream consumption.  One instance is shared between the event bus and
// any SSE clients that want connection accounting.
type StreamingMetrics struct {
	mu sync.RWMutex

	// Connection metrics (SSE client side)
	TotalConnections   int64
	FailedConnections  int64
	Reconnections      int64
	ConnectionDuration time.Duration

	// Subscription metrics (bus side)
	TotalSubscriptions  int64
	ActiveSubscriptions int64

	// Event metrics
	TotalEvents   int64
	DroppedEvents int64
	DeliveryTime  time.Duration
}

// NewStreamingMetrics creates a new StreamingMetrics instance
func NewStreamingMetrics() *StreamingMetrics {
	return &StreamingMetrics{}
}

// RecordConnection records a connection attempt
func (m *StreamingMetrics) RecordConnection(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalConnections++
	if !success {
		m.FailedConnections++
	}
	m.ConnectionDuration += duration
}

// RecordReconnection records a reconnection attempt
func (m *StreamingMetrics) RecordReconnection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconnections++
}

// RecordSubscribe records a new bus subscription
func (m *StreamingMetrics) RecordSubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSubscriptions++
	m.ActiveSubscriptions++
}

// RecordUnsubscribe records a subscription ending
func (m *StreamingMetrics) RecordUnsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveSubscriptions--
}

// RecordEvent records one event delivery to one subscriber
func (m *StreamingMetrics) RecordEvent(dropped bool, delivery time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalEvents++
	if dropped {
		m.DroppedEvents++
	}
	m.DeliveryTime += delivery
}

// GetMetrics returns a snapshot of the current metrics
func (m *StreamingMetrics) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avgDelivery := 0.0
	if m.TotalEvents > 0 {
		avgDelivery = m.DeliveryTime.Seconds() / float64(m.TotalEvents)
	}

	return map[string]any{
		"total_connections":    m.TotalConnections,
		"failed_connections":   m.FailedConnections,
		"reconnections":        m.Reconnections,
		"connection_duration":  m.ConnectionDuration.Seconds(),
		"total_subscriptions":  m.TotalSubscriptions,
		"active_subscriptions": m.ActiveSubscriptions,
		"total_events":         m.TotalEvents,
		"dropped_events":       m.DroppedEvents,
		"avg_delivery_time":    avgDelivery,
	}
}
