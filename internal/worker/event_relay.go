package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/notes-service/internal/events"
	"github.com/spec-kit/notes-service/internal/observability"
)

// Sink receives relayed events, for example a Kafka topic.
type Sink interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventRelay forwards every dispatched event to a sink, or to the debug log when there is none.
type EventRelay struct {
	sink    Sink
	logger  *zap.Logger
	metrics *observability.Metrics
}

// StartEventRelay subscribes a relay to all event types on dispatcher.
func StartEventRelay(dispatcher events.Dispatcher, sink Sink, logger *zap.Logger, metrics *observability.Metrics) *EventRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	relay := &EventRelay{sink: sink, logger: logger, metrics: metrics}
	if dispatcher == nil {
		return relay
	}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, relay.handle)
	}
	return relay
}

func (r *EventRelay) handle(ctx context.Context, event events.Event) error {
	if r.sink == nil {
		r.logger.Debug("event",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.String("note_id", event.NoteID))
		r.metrics.RecordEvent(string(event.Type), "logged")
		return nil
	}
	if err := r.sink.Publish(ctx, event); err != nil {
		r.metrics.RecordEvent(string(event.Type), "error")
		return err
	}
	r.metrics.RecordEvent(string(event.Type), "published")
	return nil
}
