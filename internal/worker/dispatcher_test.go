package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-syntax/internal/ast"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

// fakeEngine overrides a few operations. The rest hit the nil embedded
// interface and panic.
type fakeEngine struct {
	Engine

	errorCount int
	block      chan struct{}
	running    atomic.Int32
	peak       atomic.Int32
}

func (f *fakeEngine) ParseErrorCount(ctx context.Context, lang ast.Language, source string) (int, error) {
	return f.errorCount, nil
}

func (f *fakeEngine) Structure(ctx context.Context, lang ast.Language, source string) (*ast.OverlayNode, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.block:
		return nil, nil
	}
}

type recorder struct {
	mu      sync.Mutex
	started int
	codes   map[string]int
}

func (r *recorder) RequestStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) RecordRequest(fn, code string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = map[string]int{}
	}
	r.codes[fn+":"+code]++
}

func src(lang ast.Language, text string) Source {
	return Source{Lang: lang, Text: text}
}

func TestDispatcherHandlesCall(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(&fakeEngine{errorCount: 3}, Config{Metrics: rec, Logger: logger.Discard()})

	resp := d.Handle(context.Background(), Request{ID: 8, Call: &ParseErrorCountCall{src(ast.LangGo, "x")}})

	require.Nil(t, resp.Err)
	assert.Equal(t, uint64(8), resp.ID)
	assert.Equal(t, 3, resp.Res)
	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 1, rec.codes[FnParseErrorCount+":"])
}

func TestDispatcherRecoversPanic(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(&fakeEngine{}, Config{Metrics: rec, Logger: logger.Discard()})

	resp := d.Handle(context.Background(), Request{ID: 2, Call: &FunctionDefinitionsCall{src(ast.LangGo, "")}})

	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeInternal, resp.Err.Code)
	assert.Equal(t, uint64(2), resp.ID)
	assert.Equal(t, 1, rec.codes[FnFunctionDefinitions+":"+apperrors.CodeInternal])

	// The dispatcher keeps serving.
	resp = d.Handle(context.Background(), Request{ID: 3, Call: &ParseErrorCountCall{src(ast.LangGo, "")}})
	assert.Nil(t, resp.Err)
}

func TestDispatcherTimeout(t *testing.T) {
	d := NewDispatcher(&fakeEngine{block: make(chan struct{})}, Config{
		Timeout: 20 * time.Millisecond,
		Logger:  logger.Discard(),
	})

	resp := d.Handle(context.Background(), Request{ID: 1, Call: &StructureCall{src(ast.LangGo, "")}})

	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeTimeout, resp.Err.Code)
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	d := NewDispatcher(engine, Config{Concurrency: 2, Logger: logger.Discard()})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			d.Handle(context.Background(), Request{ID: id, Call: &StructureCall{src(ast.LangGo, "")}})
		}(uint64(i))
	}

	require.Eventually(t, func() bool { return engine.running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(engine.block)
	wg.Wait()

	assert.Equal(t, int32(2), engine.peak.Load())
}

func TestDispatcherRateLimit(t *testing.T) {
	d := NewDispatcher(&fakeEngine{}, Config{RateLimit: 0.001, RateBurst: 1, Logger: logger.Discard()})
	call := &ParseErrorCountCall{src(ast.LangGo, "")}

	first := d.Handle(context.Background(), Request{ID: 1, Call: call})
	require.Nil(t, first.Err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	second := d.Handle(ctx, Request{ID: 2, Call: call})
	require.NotNil(t, second.Err)
	assert.Equal(t, apperrors.CodeRateLimited, second.Err.Code)
}

func TestDispatcherRejectsInvalidSource(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(&fakeEngine{errorCount: 1}, Config{Metrics: rec, Logger: logger.Discard()})

	resp := d.Handle(context.Background(), Request{ID: 4, Call: &ParseErrorCountCall{src(ast.LangPython, "x = '\xff'")}})

	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeValidation, resp.Err.Code)
	assert.Contains(t, resp.Err.Message, "UTF-8")
	assert.Equal(t, 1, rec.codes[FnParseErrorCount+":"+apperrors.CodeValidation])
}

func TestHandleEnvelopeDecodeFailure(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(&fakeEngine{}, Config{Metrics: rec, Logger: logger.Discard()})

	resp := d.HandleEnvelope(context.Background(), Envelope{ID: 5, Fn: "dropTables"})

	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeInvalidRequest, resp.Err.Code)
	assert.Equal(t, uint64(5), resp.ID)
	assert.Equal(t, 1, rec.started)
	assert.Equal(t, 1, rec.codes["unknown:"+apperrors.CodeInvalidRequest])
}

func TestHandleEnvelopeWithEngine(t *testing.T) {
	engine := ast.NewEngine(ast.EngineConfig{Logger: logger.Discard()})
	defer engine.Close()
	d := NewDispatcher(engine, Config{Concurrency: 4, Logger: logger.Discard()})

	env := envelope(t, `{"id": 9, "fn": "_getFunctionDefinitions",
		"args": ["javascript", "function foo() { return 1; }"]}`)
	resp := d.HandleEnvelope(context.Background(), env)
	require.Nil(t, resp.Err)

	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 9, "res": [
		{"identifier": "foo", "text": "function foo() { return 1; }", "startIndex": 0, "endIndex": 28}
	]}`, string(out))

	env = envelope(t, `{"id": 10, "fn": "getStructure", "args": ["javascript", "let a = 1;", {"x": 1}]}`)
	resp = d.HandleEnvelope(context.Background(), env)
	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeInvalidRequest, resp.Err.Code)

	env = envelope(t, `{"id": 11, "fn": "getFineScopes", "args": ["javascript", "let a = 1;", {"startIndex": 4, "endIndex": 99}]}`)
	resp = d.HandleEnvelope(context.Background(), env)
	require.NotNil(t, resp.Err)
	assert.Equal(t, apperrors.CodeValidation, resp.Err.Code)
}
