package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ricesearch/rice-syntax/internal/ast"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/pkg/security"
)

// Engine is the set of operations the dispatcher drives. *ast.Engine
// implements it.
type Engine interface {
	Structure(ctx context.Context, lang ast.Language, source string) (*ast.OverlayNode, error)
	NodeToDocument(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) (*ast.NodeToDocumentResult, error)
	DocumentableNodeIfOnIdentifier(ctx context.Context, lang ast.Language, source string, r ast.OffsetRange) (*ast.IdentifierResult, error)
	NodeToExplain(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) (*ast.NodeToExplainResult, error)
	FixSelectionOfInterest(ctx context.Context, lang ast.Language, source string, r ast.PointRange, maxLines int) (ast.PointRange, error)
	CoarseParentScope(ctx context.Context, lang ast.Language, source string, r ast.PointRange) (ast.PointRange, error)
	FineScopes(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) ([]ast.OffsetRange, error)
	FunctionDefinitions(ctx context.Context, lang ast.Language, source string) ([]ast.Definition, error)
	FunctionBodies(ctx context.Context, lang ast.Language, source string) ([]ast.OffsetRange, error)
	ClassDeclarations(ctx context.Context, lang ast.Language, source string) ([]ast.Definition, error)
	TypeDeclarations(ctx context.Context, lang ast.Language, source string) ([]ast.Definition, error)
	TypeReferences(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) ([]ast.Definition, error)
	ClassReferences(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) ([]ast.Definition, error)
	CallExpressions(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) ([]ast.Definition, error)
	Symbols(ctx context.Context, lang ast.Language, source string, sel ast.OffsetRange) ([]ast.Definition, error)
	SemanticChunkTree(ctx context.Context, lang ast.Language, source string) (*ast.QueryMatchTree, error)
	SemanticChunkNames(ctx context.Context, lang ast.Language, source string) (*ast.QueryMatchTree, error)
	TestableNode(ctx context.Context, lang ast.Language, source string, r ast.OffsetRange) (*ast.TestableNode, error)
	TestableNodes(ctx context.Context, lang ast.Language, source string) ([]ast.TestableNode, error)
	FindLastTest(ctx context.Context, lang ast.Language, source string) (*ast.OffsetRange, error)
	ParseErrorCount(ctx context.Context, lang ast.Language, source string) (int, error)
	DocComments(ctx context.Context, lang ast.Language, source string) ([]ast.OffsetRange, error)
}

// Recorder receives per-request measurements. *metrics.Metrics implements it.
type Recorder interface {
	RequestStarted()
	RecordRequest(fn, code string, d time.Duration)
}

// Config bounds request handling. Zero values disable the matching limit.
type Config struct {
	// Concurrency caps requests running at once. Zero means unbounded.
	Concurrency int
	// Timeout bounds each request.
	Timeout time.Duration
	// RateLimit is the sustained request rate per second.
	RateLimit float64
	// RateBurst is the limiter bucket size. Defaults to 1.
	RateBurst int

	Metrics Recorder
	Logger  *logger.Logger
}

// Dispatcher runs decoded requests against an Engine. A failing or
// panicking operation produces an error response and never takes the
// dispatcher down.
type Dispatcher struct {
	engine  Engine
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
	metrics Recorder
	log     *logger.Logger
}

// NewDispatcher creates a dispatcher over engine.
func NewDispatcher(engine Engine, cfg Config) *Dispatcher {
	d := &Dispatcher{
		engine:  engine,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
	}
	if d.log == nil {
		d.log = logger.Default()
	}
	d.log = d.log.WithComponent("worker")
	if cfg.Concurrency > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.Concurrency))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return d
}

// HandleEnvelope decodes env and handles it.
func (d *Dispatcher) HandleEnvelope(ctx context.Context, env Envelope) Response {
	req, err := Decode(env)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RequestStarted()
		}
		d.record(ctx, fnLabel(env.Fn), "", 0, err)
		return Response{ID: env.ID, Err: toAppError(err)}
	}
	return d.Handle(ctx, req)
}

// Handle runs one request and returns its response.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	fn := req.Call.Fn()
	lang := req.Call.Language().String()

	if d.metrics != nil {
		d.metrics.RequestStarted()
	}

	res, err := d.run(ctx, req.Call)
	d.record(ctx, fn, lang, time.Since(start), err)

	if err != nil {
		return Response{ID: req.ID, Err: toAppError(err)}
	}
	return Response{ID: req.ID, Res: res}
}

func (d *Dispatcher) run(ctx context.Context, call Call) (res any, err error) {
	if err := security.ValidateSource(call.source()); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.TimeoutError(call.Fn())
			}
			return nil, apperrors.RateLimitedError(1)
		}
	}

	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil, apperrors.TimeoutError(call.Fn())
		}
		defer d.sem.Release(1)
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Recovered panic in request",
				"fn", call.Fn(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			if appErr, ok := r.(*apperrors.AppError); ok {
				err = appErr
				return
			}
			err = apperrors.InternalError(fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	res, err = d.dispatch(ctx, call)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.TimeoutError(call.Fn())
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, call Call) (any, error) {
	e := d.engine
	switch c := call.(type) {
	case *StructureCall:
		return e.Structure(ctx, c.Lang, c.Text)
	case *NodeToDocumentCall:
		return e.NodeToDocument(ctx, c.Lang, c.Text, c.Selection)
	case *DocumentableNodeIfOnIdentifierCall:
		return e.DocumentableNodeIfOnIdentifier(ctx, c.Lang, c.Text, c.Range)
	case *NodeToExplainCall:
		return e.NodeToExplain(ctx, c.Lang, c.Text, c.Selection)
	case *FixSelectionOfInterestCall:
		return e.FixSelectionOfInterest(ctx, c.Lang, c.Text, c.Range, c.MaxLines)
	case *CoarseParentScopeCall:
		return e.CoarseParentScope(ctx, c.Lang, c.Text, c.Range)
	case *FineScopesCall:
		return e.FineScopes(ctx, c.Lang, c.Text, c.Selection)
	case *FunctionDefinitionsCall:
		return e.FunctionDefinitions(ctx, c.Lang, c.Text)
	case *FunctionBodiesCall:
		return e.FunctionBodies(ctx, c.Lang, c.Text)
	case *ClassDeclarationsCall:
		return e.ClassDeclarations(ctx, c.Lang, c.Text)
	case *TypeDeclarationsCall:
		return e.TypeDeclarations(ctx, c.Lang, c.Text)
	case *TypeReferencesCall:
		return e.TypeReferences(ctx, c.Lang, c.Text, c.Selection)
	case *ClassReferencesCall:
		return e.ClassReferences(ctx, c.Lang, c.Text, c.Selection)
	case *CallExpressionsCall:
		return e.CallExpressions(ctx, c.Lang, c.Text, c.Selection)
	case *SymbolsCall:
		return e.Symbols(ctx, c.Lang, c.Text, c.Selection)
	case *SemanticChunkTreeCall:
		return e.SemanticChunkTree(ctx, c.Lang, c.Text)
	case *SemanticChunkNamesCall:
		return e.SemanticChunkNames(ctx, c.Lang, c.Text)
	case *TestableNodeCall:
		return e.TestableNode(ctx, c.Lang, c.Text, c.Range)
	case *TestableNodesCall:
		return e.TestableNodes(ctx, c.Lang, c.Text)
	case *FindLastTestCall:
		return e.FindLastTest(ctx, c.Lang, c.Text)
	case *ParseErrorCountCall:
		return e.ParseErrorCount(ctx, c.Lang, c.Text)
	case *DocCommentsCall:
		return e.DocComments(ctx, c.Lang, c.Text)
	default:
		return nil, apperrors.BugError(fmt.Sprintf("no handler for %T", call))
	}
}

func (d *Dispatcher) record(ctx context.Context, fn, lang string, dur time.Duration, err error) {
	code := ""
	if err != nil {
		code = apperrors.CodeOf(err)
	}
	if d.metrics != nil {
		d.metrics.RecordRequest(fn, code, dur)
	}

	log := d.log.WithContext(ctx)
	if err != nil {
		log.Warn("Request failed",
			"fn", fn,
			"language", lang,
			"duration_ms", dur.Milliseconds(),
			"code", code,
			"error", err.Error(),
		)
		return
	}
	log.Debug("Request handled",
		"fn", fn,
		"language", lang,
		"duration_ms", dur.Milliseconds(),
	)
}

// fnLabel keeps metric labels to the known function names.
func fnLabel(fn string) string {
	fn = strings.TrimPrefix(fn, "_")
	if _, ok := calls[fn]; ok {
		return fn
	}
	return "unknown"
}

func toAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	return apperrors.InternalError(err.Error(), err)
}
