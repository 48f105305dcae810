package ast

import (
	"context"
	"sync"
	"testing"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-syntax/internal/pkg/logger"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

func newTestCache(size int) *TreeCache {
	return NewTreeCache(NewBuiltinGrammars(), TreeCacheConfig{Size: size, Logger: logger.Discard()})
}

func TestAcquireSharesTree(t *testing.T) {
	c := newTestCache(5)
	ctx := context.Background()

	a, err := c.Acquire(ctx, LangJavaScript, "let a = 1;")
	require.NoError(t, err)
	b, err := c.Acquire(ctx, LangJavaScript, "let a = 1;")
	require.NoError(t, err)

	assert.Same(t, a.Tree(), b.Tree())
	assert.Equal(t, 3, a.Tree().Refs(), "cache plus two holders")

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	assert.Equal(t, 1, a.Tree().Refs())
	assert.True(t, a.Tree().Alive())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries["javascript"])
}

func TestAcquireKeysByLanguage(t *testing.T) {
	c := newTestCache(5)
	ctx := context.Background()

	js, err := c.Acquire(ctx, LangJavaScript, "x")
	require.NoError(t, err)
	defer js.Release()
	py, err := c.Acquire(ctx, LangPython, "x")
	require.NoError(t, err)
	defer py.Release()

	assert.NotSame(t, js.Tree(), py.Tree())
	assert.Equal(t, 1, c.Len(LangJavaScript))
	assert.Equal(t, 1, c.Len(LangPython))
}

func TestEvictionDestroysUnheldTree(t *testing.T) {
	c := newTestCache(1)
	ctx := context.Background()

	first, err := c.Acquire(ctx, LangPython, "a = 1\n")
	require.NoError(t, err)
	tree := first.Tree()
	require.NoError(t, first.Release())

	second, err := c.Acquire(ctx, LangPython, "b = 2\n")
	require.NoError(t, err)
	defer second.Release()

	assert.False(t, tree.Alive())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestEvictionKeepsHeldTree(t *testing.T) {
	c := newTestCache(1)
	ctx := context.Background()

	held, err := c.Acquire(ctx, LangPython, "a = 1\n")
	require.NoError(t, err)

	other, err := c.Acquire(ctx, LangPython, "b = 2\n")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	assert.True(t, held.Tree().Alive())
	assert.Equal(t, "module", held.Root().Type())

	require.NoError(t, held.Release())
	assert.False(t, held.Tree().Alive())
}

func TestReleaseTwice(t *testing.T) {
	c := newTestCache(5)
	ref, err := c.Acquire(context.Background(), LangGo, "package main\n")
	require.NoError(t, err)

	require.NoError(t, ref.Release())
	err = ref.Release()
	require.Error(t, err)
	assert.True(t, apperrors.IsDisposed(err))
}

func TestNodeAfterDisposePanics(t *testing.T) {
	c := newTestCache(5)
	ref, err := c.Acquire(context.Background(), LangJavaScript, "foo();")
	require.NoError(t, err)
	root := ref.Root()

	require.NoError(t, ref.Release())
	c.Purge()
	require.False(t, ref.Tree().Alive())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		appErr, ok := r.(*apperrors.AppError)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeDisposed, appErr.Code)
	}()
	_ = root.Type()
}

func TestDerefDisposedTree(t *testing.T) {
	c := newTestCache(5)
	ref, err := c.Acquire(context.Background(), LangJavaScript, "1")
	require.NoError(t, err)
	tree := ref.Tree()
	require.NoError(t, ref.Release())
	c.Purge()

	assert.True(t, apperrors.IsDisposed(tree.Ref()))
	assert.True(t, apperrors.IsDisposed(tree.Deref()))
}

func TestAcquireUnsupportedLanguage(t *testing.T) {
	c := newTestCache(5)
	_, err := c.Acquire(context.Background(), LangUnknown, "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnsupportedLanguage, apperrors.CodeOf(err))
}

func TestAcquireConcurrent(t *testing.T) {
	c := newTestCache(2)
	ctx := context.Background()
	sources := []string{"a = 1\n", "b = 2\n", "c = 3\n"}

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			ref, err := c.Acquire(ctx, LangPython, src)
			if err != nil {
				errs <- err
				return
			}
			tree := ref.Tree()
			tree.useMu.Lock()
			kind := ref.Root().Type()
			tree.useMu.Unlock()
			if kind != "module" {
				errs <- apperrors.InternalError("unexpected root "+kind, nil)
			}
			errs <- ref.Release()
		}(sources[i%len(sources)])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(LangPython), 2)
}

// gatedGrammars blocks the first Load until gate is closed.
type gatedGrammars struct {
	GrammarLoader
	once    sync.Once
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedGrammars) Load(lang Language) (*sitter.Language, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.gate
	})
	return g.GrammarLoader.Load(lang)
}

func TestAcquireCancelledWaiterDoesNotFailOthers(t *testing.T) {
	loader := &gatedGrammars{
		GrammarLoader: NewBuiltinGrammars(),
		entered:       make(chan struct{}),
		gate:          make(chan struct{}),
	}
	c := NewTreeCache(loader, TreeCacheConfig{Size: 5, Logger: logger.Discard()})
	src := "let shared = 1;"

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		ref, err := c.Acquire(firstCtx, LangJavaScript, src)
		if err == nil {
			ref.Release()
		}
		firstErr <- err
	}()
	<-loader.entered

	second := make(chan error, 1)
	go func() {
		ref, err := c.Acquire(context.Background(), LangJavaScript, src)
		if err == nil {
			err = ref.Release()
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.CodeOf(err))

	close(loader.gate)
	require.NoError(t, <-second)
	assert.Equal(t, 1, c.Len(LangJavaScript))
}
