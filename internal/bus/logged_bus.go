package bus

import (
	"context"
	"errors"

	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

// LoggedBus records bus traffic in an EventLogger so a session can be
// inspected later or re-run with "rice-syntax replay". Requests are
// recorded under their topic and answered replies under ResponseTopic.
type LoggedBus struct {
	inner  Bus
	events *EventLogger
	log    *logger.Logger
}

// NewLoggedBus wraps inner. A nil events logger records nothing.
func NewLoggedBus(inner Bus, events *EventLogger, log *logger.Logger) *LoggedBus {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedBus{inner: inner, events: events, log: log.WithComponent("event-log")}
}

// record never fails the bus call; a lost log line is only reported.
func (b *LoggedBus) record(topic string, event Event) {
	if err := b.events.Log(topic, event); err != nil {
		b.log.Warn("Failed to record event",
			"topic", topic,
			"event_id", event.ID,
			"error", err.Error(),
		)
	}
}

func (b *LoggedBus) Publish(ctx context.Context, topic string, event Event) error {
	b.record(topic, event)
	return b.inner.Publish(ctx, topic, event)
}

func (b *LoggedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Request records the request, and the reply when one arrives.
func (b *LoggedBus) Request(ctx context.Context, topic string, req Event) (Event, error) {
	b.record(topic, req)

	resp, err := b.inner.Request(ctx, topic, req)
	if err != nil {
		b.log.Debug("Request went unanswered",
			"topic", topic,
			"correlation_id", req.CorrelationID,
			"error", err.Error(),
		)
		return resp, err
	}
	b.record(ResponseTopic(topic), resp)
	return resp, nil
}

// Unwrap returns the wrapped bus.
func (b *LoggedBus) Unwrap() Bus { return b.inner }

// Close flushes the event log, then closes the inner bus.
func (b *LoggedBus) Close() error {
	return errors.Join(b.events.Close(), b.inner.Close())
}
