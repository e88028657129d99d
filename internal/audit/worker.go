package audit

import (
	"context"
	"log/slog"
)

// Sink receives events from the worker. The Postgres store and the Kafka
// producer both satisfy it.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Worker consumes events from the publisher and fans them out to sinks.
// Sink failures are logged and skipped; one broken sink must not starve the
// others or stop the worker.
type Worker struct {
	inbox  <-chan Event
	sinks  []Sink
	logger *slog.Logger
}

// NewWorker builds a worker over the publisher's inbox.
func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{inbox: inbox, sinks: sinks, logger: logger}
}

// Run processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			for _, sink := range w.sinks {
				if err := sink.Append(ctx, event); err != nil {
					w.logger.WarnContext(ctx, "audit sink append failed",
						"action", event.Action,
						"error", err,
					)
				}
			}
		}
	}
}
