package audit

import (
	"context"
	"time"

	"foodlink/internal/platform/metrics"
)

// Publisher hands events to the background worker over a bounded buffer.
// Emit never blocks a request: when the buffer is full the event is dropped
// and counted, because audit is best-effort relative to the state change.
type Publisher struct {
	inbox   chan Event
	metrics *metrics.Metrics
}

// NewPublisher creates a publisher with the given buffer size.
func NewPublisher(buffer int, m *metrics.Metrics) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer), metrics: m}
}

// Emit enqueues an event for the worker.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		if p.metrics != nil {
			p.metrics.AuditEventsDropped.Inc()
		}
	}
	return nil
}

// Inbox exposes the channel for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }
