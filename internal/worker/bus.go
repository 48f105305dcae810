package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ricesearch/rice-syntax/internal/bus"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

const source = "rice-syntax-worker"

// BusWorker serves envelopes published on a bus topic. Replies carry the
// correlation id of the request event.
type BusWorker struct {
	bus        bus.Bus
	dispatcher *Dispatcher
	topic      string
	log        *logger.Logger
}

// NewBusWorker creates a worker for topic. An empty topic means
// bus.TopicSyntaxRequest.
func NewBusWorker(b bus.Bus, d *Dispatcher, topic string, log *logger.Logger) *BusWorker {
	if topic == "" {
		topic = bus.TopicSyntaxRequest
	}
	if log == nil {
		log = logger.Default()
	}
	return &BusWorker{bus: b, dispatcher: d, topic: topic, log: log.WithComponent("bus-worker")}
}

// Start subscribes the worker. Events are handled until the bus closes.
func (w *BusWorker) Start(ctx context.Context) error {
	if err := w.bus.Subscribe(ctx, w.topic, w.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", w.topic, err)
	}
	w.log.Info("Bus worker started", "topic", w.topic)
	return nil
}

func (w *BusWorker) handle(ctx context.Context, event bus.Event) error {
	var resp Response
	var env Envelope
	if err := bus.DecodePayload(event, &env); err != nil {
		resp = Response{Err: apperrors.Wrap(apperrors.CodeInvalidRequest, "malformed envelope", err)}
	} else {
		ctx = logger.ContextWithRequestID(ctx, event.CorrelationID)
		resp = w.dispatcher.HandleEnvelope(ctx, env)
	}

	if err := bus.Reply(ctx, w.bus, w.topic, bus.NewResponse(event, source, resp)); err != nil {
		// The caller may have given up already.
		w.log.Warn("Failed to deliver reply",
			"event_id", event.ID,
			"correlation_id", event.CorrelationID,
			"error", err.Error(),
		)
	}
	return nil
}

// BusClient sends envelopes over a bus and waits for the replies.
type BusClient struct {
	*Caller
	bus   bus.Bus
	topic string
}

// NewBusClient creates a client for topic. An empty topic means
// bus.TopicSyntaxRequest.
func NewBusClient(b bus.Bus, topic string) *BusClient {
	if topic == "" {
		topic = bus.TopicSyntaxRequest
	}
	c := &BusClient{bus: b, topic: topic}
	c.Caller = NewCaller(c)
	return c
}

// Send publishes env and waits for its reply.
func (c *BusClient) Send(ctx context.Context, env Envelope) (json.RawMessage, error) {
	event, err := c.bus.Request(ctx, c.topic, bus.NewEvent(c.topic, "rice-syntax-client", env))
	if err != nil {
		return nil, err
	}
	var resp RawResponse
	if err := bus.DecodePayload(event, &resp); err != nil {
		return nil, apperrors.InternalError("malformed reply", err)
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	if resp.ID != env.ID {
		return nil, apperrors.InternalError(fmt.Sprintf("reply for request %d, want %d", resp.ID, env.ID), nil)
	}
	return resp.Res, nil
}
