// Package bus carries syntax requests between processes. The memory bus
// serves a single process; the Kafka bus lets workers scale out.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Request sends a request and waits for the event published with the
	// same correlation id on the topic's response topic.
	Request(ctx context.Context, topic string, req Event) (Event, error)

	// Close closes the bus and releases resources.
	Close() error
}

// Responder is implemented by buses that track pending requests in process
// and can hand a response to the waiting caller directly.
type Responder interface {
	Respond(correlationID string, event Event) error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "syntax.request").
	Type string `json:"type"`

	// Source is the service that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links a request to its response.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Topics.
const (
	TopicSyntaxRequest  = "syntax.request"
	TopicSyntaxResponse = "syntax.request.response"
)

// ResponseTopic returns the topic that carries replies to requests on topic.
func ResponseTopic(topic string) string {
	return topic + ".response"
}

// NewEvent creates an event with a fresh id and the current time. The id
// doubles as the correlation id.
func NewEvent(eventType, source string, payload any) Event {
	id := uuid.NewString()
	return Event{
		ID:            id,
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: id,
		Payload:       payload,
	}
}

// NewResponse creates the reply to req.
func NewResponse(req Event, source string, payload any) Event {
	resp := NewEvent(ResponseTopic(req.Type), source, payload)
	resp.CorrelationID = req.CorrelationID
	return resp
}

// DecodePayload decodes the event payload into v. Payloads arrive as Go
// values on the memory bus and as decoded JSON on the Kafka bus, so both
// shapes are accepted.
func DecodePayload(event Event, v any) error {
	var data []byte
	switch p := event.Payload.(type) {
	case nil:
		return fmt.Errorf("event %s has no payload", event.ID)
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		var err error
		data, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Reply delivers resp to the caller of a request made on topic. Buses that
// implement Responder, possibly behind wrappers, get it directly; the rest
// get it published on the response topic.
func Reply(ctx context.Context, b Bus, topic string, resp Event) error {
	for inner := b; inner != nil; {
		if r, ok := inner.(Responder); ok {
			return r.Respond(resp.CorrelationID, resp)
		}
		w, ok := inner.(interface{ Unwrap() Bus })
		if !ok {
			break
		}
		inner = w.Unwrap()
	}
	return b.Publish(ctx, ResponseTopic(topic), resp)
}
