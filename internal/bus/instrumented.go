package bus

import (
	"context"
	"time"
)

// Bus operations reported to a MetricsRecorder.
const (
	OpPublish = "publish"
	OpRequest = "request"
)

// MetricsRecorder receives the outcome of every timed bus call. The metrics
// package implements it; the interface keeps bus free of that import.
type MetricsRecorder interface {
	RecordBusCall(op, topic string, d time.Duration, err error)
}

// InstrumentedBus times Publish and Request on the wrapped bus. Request
// time covers the whole round trip, reply included.
type InstrumentedBus struct {
	inner   Bus
	metrics MetricsRecorder
}

// NewInstrumentedBus wraps inner. A nil recorder turns the wrapper into a
// pass-through.
func NewInstrumentedBus(inner Bus, metrics MetricsRecorder) *InstrumentedBus {
	return &InstrumentedBus{inner: inner, metrics: metrics}
}

func (b *InstrumentedBus) observe(op, topic string, start time.Time, err error) {
	if b.metrics != nil {
		b.metrics.RecordBusCall(op, topic, time.Since(start), err)
	}
}

func (b *InstrumentedBus) Publish(ctx context.Context, topic string, event Event) error {
	start := time.Now()
	err := b.inner.Publish(ctx, topic, event)
	b.observe(OpPublish, topic, start, err)
	return err
}

// Subscribe is not timed; handler time is the dispatcher's to report.
func (b *InstrumentedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

func (b *InstrumentedBus) Request(ctx context.Context, topic string, req Event) (Event, error) {
	start := time.Now()
	resp, err := b.inner.Request(ctx, topic, req)
	b.observe(OpRequest, topic, start, err)
	return resp, err
}

// Unwrap returns the wrapped bus.
func (b *InstrumentedBus) Unwrap() Bus { return b.inner }

func (b *InstrumentedBus) Close() error {
	return b.inner.Close()
}
