package bus

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

func TestEventLogger(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "events.log")

	t.Run("NewEventLogger_Enabled", func(t *testing.T) {
		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		if !el.IsEnabled() {
			t.Error("Expected logger to be enabled")
		}
	})

	t.Run("NewEventLogger_Disabled", func(t *testing.T) {
		el, err := NewEventLogger(logPath, false)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		if el.IsEnabled() {
			t.Error("Expected logger to be disabled")
		}
	})

	t.Run("Nil_IsDisabled", func(t *testing.T) {
		var el *EventLogger
		if el.IsEnabled() {
			t.Error("nil logger reports enabled")
		}
		if err := el.Log("t", Event{}); err != nil {
			t.Errorf("Log() on nil logger error = %v", err)
		}
		if err := el.Close(); err != nil {
			t.Errorf("Close() on nil logger error = %v", err)
		}
	})

	t.Run("Log_Enabled", func(t *testing.T) {
		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		event := Event{
			ID:      "test-123",
			Type:    TopicSyntaxRequest,
			Source:  "test",
			Payload: map[string]any{"id": 1, "fn": "getParseErrorCount"},
		}

		if err := el.Log(TopicSyntaxRequest, event); err != nil {
			t.Fatalf("Log failed: %v", err)
		}

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Fatal("Log file was not created")
		}
	})

	t.Run("GetEvents", func(t *testing.T) {
		os.Remove(logPath)

		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		for i := 0; i < 5; i++ {
			if err := el.Log("test.topic", NewEvent("test.event", "test", i)); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		since := time.Now().Add(-time.Minute)
		events, err := el.GetEvents(EventFilter{Since: since})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 5 {
			t.Errorf("Expected 5 events, got %d", len(events))
		}

		events, err = el.GetEvents(EventFilter{Since: since, Limit: 3})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 3 {
			t.Errorf("Expected 3 events (limit), got %d", len(events))
		}

		events, err = el.GetEvents(EventFilter{Since: time.Now().Add(time.Minute)})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no events in the future, got %d", len(events))
		}
	})

	t.Run("GetEvents_TopicFilter", func(t *testing.T) {
		os.Remove(logPath)

		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		for i, topic := range []string{"a", "b", "a", "b", "a"} {
			if err := el.Log(topic, NewEvent("test.event", "test", i)); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		events, err := el.GetEvents(EventFilter{Topic: "a", Limit: 2})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(events))
		}
		for _, e := range events {
			if e.Topic != "a" {
				t.Errorf("Expected topic a, got %s", e.Topic)
			}
		}
	})

	t.Run("ClosedLoggerRejectsLog", func(t *testing.T) {
		el, err := NewEventLogger(filepath.Join(tempDir, "closed.log"), true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		if err := el.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := el.Close(); err != nil {
			t.Errorf("second Close failed: %v", err)
		}
		if err := el.Log("a", Event{ID: "1"}); err == nil {
			t.Error("Expected Log after Close to fail")
		}
	})

	t.Run("ReadEvents_SkipsMalformedLines", func(t *testing.T) {
		path := filepath.Join(tempDir, "mixed.log")
		el, err := NewEventLogger(path, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		if err := el.Log("a", Event{ID: "1"}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
		el.Close()

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("OpenFile failed: %v", err)
		}
		f.WriteString("not json\n")
		f.Close()

		events, err := ReadEvents(path, EventFilter{})
		if err != nil {
			t.Fatalf("ReadEvents failed: %v", err)
		}
		if len(events) != 1 || events[0].Event.ID != "1" {
			t.Errorf("ReadEvents() = %+v, want the single valid event", events)
		}

		events, err = ReadEvents(filepath.Join(tempDir, "missing.log"), EventFilter{})
		if err != nil || len(events) != 0 {
			t.Errorf("ReadEvents(missing) = %v, %v, want empty", events, err)
		}
	})

	t.Run("Replay", func(t *testing.T) {
		os.Remove(logPath)

		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}
		defer el.Close()

		for i := 0; i < 3; i++ {
			if err := el.Log("test.replay", NewEvent("test.replay", "test", i)); err != nil {
				t.Fatalf("Log failed: %v", err)
			}
		}

		replayBus := newTestBus()

		var eventCount atomic.Int32
		ctx := context.Background()
		err = replayBus.Subscribe(ctx, "test.replay", func(ctx context.Context, event Event) error {
			eventCount.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if err := el.Replay(ctx, replayBus, EventFilter{Topic: "test.replay"}); err != nil {
			t.Fatalf("Replay failed: %v", err)
		}

		// Close drains in-flight handlers.
		replayBus.Close()

		if got := eventCount.Load(); got != 3 {
			t.Errorf("Expected 3 replayed events, got %d", got)
		}
	})
}

func TestLoggedBus(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "logged_bus.log")

	t.Run("Publish_LogsEvent", func(t *testing.T) {
		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}

		loggedBus := NewLoggedBus(newTestBus(), el, logger.Discard())
		defer loggedBus.Close()

		event := Event{ID: "test-pub", Type: "test.publish", Source: "test"}
		if err := loggedBus.Publish(context.Background(), "test.topic", event); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		events, err := el.GetEvents(EventFilter{})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 logged event, got %d", len(events))
		}
		if events[0].Event.ID != "test-pub" {
			t.Errorf("Expected event ID 'test-pub', got '%s'", events[0].Event.ID)
		}
	})

	t.Run("Request_LogsRequestAndResponse", func(t *testing.T) {
		os.Remove(logPath)

		innerBus := newTestBus()
		el, err := NewEventLogger(logPath, true)
		if err != nil {
			t.Fatalf("NewEventLogger failed: %v", err)
		}

		loggedBus := NewLoggedBus(innerBus, el, logger.Discard())
		defer loggedBus.Close()

		ctx := context.Background()
		err = loggedBus.Subscribe(ctx, TopicSyntaxRequest, func(ctx context.Context, event Event) error {
			return Reply(ctx, loggedBus, TopicSyntaxRequest, NewResponse(event, "test", "ok"))
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if _, err := loggedBus.Request(ctx, TopicSyntaxRequest, NewEvent(TopicSyntaxRequest, "test", "ping")); err != nil {
			t.Fatalf("Request failed: %v", err)
		}

		events, err := el.GetEvents(EventFilter{})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 logged events (request + response), got %d", len(events))
		}
		if events[0].Topic != TopicSyntaxRequest || events[1].Topic != TopicSyntaxResponse {
			t.Errorf("logged topics = %s, %s", events[0].Topic, events[1].Topic)
		}
	})
}
