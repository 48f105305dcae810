package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

type busCall struct {
	op, topic string
	err       error
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []busCall
}

func (r *recordingMetrics) RecordBusCall(op, topic string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, busCall{op: op, topic: topic, err: err})
}

func TestInstrumentedBus_RecordsCalls(t *testing.T) {
	rec := &recordingMetrics{}
	b := NewInstrumentedBus(newTestBus(WithRequestTimeout(50*time.Millisecond)), rec)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Subscribe(ctx, TopicSyntaxRequest, func(ctx context.Context, event Event) error {
		return Reply(ctx, b, TopicSyntaxRequest, NewResponse(event, "test", "pong"))
	}))

	require.NoError(t, b.Publish(ctx, "other", NewEvent("other", "test", nil)))
	_, err := b.Request(ctx, TopicSyntaxRequest, NewEvent(TopicSyntaxRequest, "test", "ping"))
	require.NoError(t, err)
	_, err = b.Request(ctx, "nobody.listens", NewEvent("nobody.listens", "test", "ping"))
	require.Error(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.calls, 3)
	assert.Equal(t, busCall{op: OpPublish, topic: "other"}, rec.calls[0])
	assert.Equal(t, OpRequest, rec.calls[1].op)
	assert.NoError(t, rec.calls[1].err)
	assert.Equal(t, "nobody.listens", rec.calls[2].topic)
	assert.Equal(t, errors.CodeTimeout, errors.CodeOf(rec.calls[2].err))
}

func TestInstrumentedBus_NilRecorder(t *testing.T) {
	inner := newTestBus()
	b := NewInstrumentedBus(inner, nil)
	defer b.Close()

	assert.NoError(t, b.Publish(context.Background(), "t", NewEvent("t", "test", nil)))
	assert.Same(t, inner, b.Unwrap())
}
