package bus

import (
	"context"
	"sync"
	"time"

	"github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

const (
	defaultRequestTimeout = 30 * time.Second
	drainTimeout          = 10 * time.Second
)

var errClosed = errors.New(errors.CodeUnavailable, "bus is closed")

// MemoryBus delivers events within the process. Every handler of a topic
// runs on its own goroutine, and replies bypass topics through Respond.
type MemoryBus struct {
	timeout time.Duration
	log     *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	pending  map[string]chan Event
	closed   bool

	inflight sync.WaitGroup
	stop     chan struct{}
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithRequestTimeout bounds how long Request waits for its reply.
func WithRequestTimeout(d time.Duration) MemoryOption {
	return func(b *MemoryBus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger for handler failures.
func WithLogger(log *logger.Logger) MemoryOption {
	return func(b *MemoryBus) {
		if log != nil {
			b.log = log
		}
	}
}

func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		timeout:  defaultRequestTimeout,
		log:      logger.Default(),
		handlers: make(map[string][]Handler),
		pending:  make(map[string]chan Event),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithComponent("bus.memory")
	return b
}

// Publish starts every handler of topic and returns without waiting.
// Handlers keep the values of ctx but not its cancellation, since they
// outlive the publishing call. A topic without handlers drops the event.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	hctx := context.WithoutCancel(ctx)
	for _, h := range b.handlers[topic] {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			if err := h(hctx, event); err != nil {
				b.log.Warn("Handler failed", "topic", topic, "event_id", event.ID, "error", err)
			}
		}()
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Request publishes req and waits for Respond with its correlation id.
func (b *MemoryBus) Request(ctx context.Context, topic string, req Event) (Event, error) {
	corr := req.CorrelationID
	if corr == "" {
		return Event{}, errors.New(errors.CodeInvalidRequest, "request event has no correlation id")
	}

	reply := make(chan Event, 1)
	b.mu.Lock()
	switch {
	case b.closed:
		b.mu.Unlock()
		return Event{}, errClosed
	case b.pending[corr] != nil:
		b.mu.Unlock()
		return Event{}, errors.New(errors.CodeInvalidRequest, "correlation id already pending").WithDetail("correlation_id", corr)
	}
	b.pending[corr] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, corr)
		b.mu.Unlock()
	}()

	if err := b.Publish(ctx, topic, req); err != nil {
		return Event{}, err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Event{}, errors.Wrap(errors.CodeTimeout, "request timeout", ctx.Err())
	case <-timer.C:
		return Event{}, errors.TimeoutError("bus request on " + topic)
	case <-b.stop:
		return Event{}, errClosed
	}
}

// Respond hands event to the Request waiting on correlationID.
func (b *MemoryBus) Respond(correlationID string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	reply, ok := b.pending[correlationID]
	if !ok {
		return errors.NotFoundError("pending request").WithDetail("correlation_id", correlationID)
	}
	select {
	case reply <- event:
		return nil
	default:
		return errors.New(errors.CodeInvalidRequest, "request already answered").WithDetail("correlation_id", correlationID)
	}
}

// Close fails waiting requests, then waits up to drainTimeout for running
// handlers. It is safe to call more than once.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	if !b.DrainTimeout(drainTimeout) {
		b.log.Warn("Handlers still running after drain timeout", "timeout", drainTimeout)
	}

	b.mu.Lock()
	clear(b.handlers)
	b.mu.Unlock()
	return nil
}

// DrainTimeout waits up to timeout for running handlers and reports
// whether they all finished.
func (b *MemoryBus) DrainTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
