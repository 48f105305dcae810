package bus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// maxLoggedEvent bounds one JSONL line. A request carries its whole source
// text, so this must exceed the largest accepted source.
const maxLoggedEvent = 24 << 20

// LoggedEvent is one line of an event log.
type LoggedEvent struct {
	Event     Event     `json:"event"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFilter selects events from a log. Zero fields match everything.
type EventFilter struct {
	// Since keeps events logged strictly after this time.
	Since time.Time
	// Topic keeps events logged under this topic.
	Topic string
	// Limit stops after this many matches.
	Limit int
}

func (f EventFilter) match(e LoggedEvent) bool {
	return e.Timestamp.After(f.Since) && (f.Topic == "" || e.Topic == f.Topic)
}

// EventLogger appends bus events to a JSONL file, one LoggedEvent per
// line. A nil *EventLogger behaves like a disabled one.
type EventLogger struct {
	path    string
	enabled bool

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEventLogger opens path for appending, creating parent directories.
// A disabled logger opens nothing and drops every event.
func NewEventLogger(path string, enabled bool) (*EventLogger, error) {
	l := &EventLogger{path: path, enabled: enabled}
	if !enabled {
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = file
	l.enc = json.NewEncoder(file)
	return l, nil
}

// IsEnabled reports whether events are written.
func (l *EventLogger) IsEnabled() bool {
	return l != nil && l.enabled
}

// Path returns the log file path.
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Log appends event under topic and syncs the file, so a crashed process
// still leaves a replayable log.
func (l *EventLogger) Log(topic string, event Event) error {
	if !l.IsEnabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New(errors.CodeDisposed, "event logger is closed")
	}

	if err := l.enc.Encode(LoggedEvent{Event: event, Topic: topic, Timestamp: time.Now()}); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return nil
}

// GetEvents reads back this logger's file, oldest first.
func (l *EventLogger) GetEvents(f EventFilter) ([]LoggedEvent, error) {
	if !l.IsEnabled() {
		return nil, errors.New(errors.CodeUnavailable, "event logging is disabled")
	}

	// Holding the lock keeps a concurrent Log from leaving a half-written
	// last line in view.
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadEvents(l.path, f)
}

// ReadEvents reads a log written by an EventLogger, oldest first. A
// missing file holds no events and malformed lines are skipped.
func ReadEvents(path string, f EventFilter) ([]LoggedEvent, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return []LoggedEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	events := []LoggedEvent{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLoggedEvent)
	for scanner.Scan() {
		var e LoggedEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if !f.match(e) {
			continue
		}
		events = append(events, e)
		if f.Limit > 0 && len(events) >= f.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return events, nil
}

// Replay publishes the matching events to b in logged order, each under
// the topic it was logged with.
func (l *EventLogger) Replay(ctx context.Context, b Bus, f EventFilter) error {
	events, err := l.GetEvents(f)
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}

	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Publish(ctx, e.Topic, e.Event); err != nil {
			return fmt.Errorf("failed to replay event %s: %w", e.Event.ID, err)
		}
	}
	return nil
}

// Close closes the log file. Later Log calls fail with DISPOSED.
func (l *EventLogger) Close() error {
	if !l.IsEnabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.enc = nil, nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
