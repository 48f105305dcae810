package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

func TestNewLocal(t *testing.T) {
	a, err := New(config.Default(), logger.Discard(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Bus)

	var defs []ast.Definition
	call := &worker.FunctionDefinitionsCall{Source: worker.Source{Lang: ast.LangGo, Text: "package p\n\nfunc Run() {}\n"}}
	require.NoError(t, a.Caller().Do(context.Background(), call, &defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "Run", defs[0].Identifier)
}

func TestNewWithBus(t *testing.T) {
	a, err := New(config.Default(), logger.Discard(), Options{Bus: true})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Bus)
	client := worker.NewBusClient(a.Bus, a.Config.Bus.Topic)

	var count int
	call := &worker.ParseErrorCountCall{Source: worker.Source{Lang: ast.LangPython, Text: "def f(:\n"}}
	require.NoError(t, client.Do(context.Background(), call, &count))
	assert.Positive(t, count)
}

func TestNewStructureCacheReused(t *testing.T) {
	a, err := New(config.Default(), logger.Discard(), Options{})
	require.NoError(t, err)
	defer a.Close()

	text := "class A:\n    def m(self):\n        pass\n"
	for range 2 {
		_, err := a.Engine.Structure(context.Background(), ast.LangPython, text)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.StructureCacheMisses.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.StructureCacheHits.WithLabelValues("memory")))
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := config.Default()
	cfg.StructureCache.Type = "etcd"
	_, err := New(cfg, logger.Discard(), Options{})
	assert.ErrorContains(t, err, "structure cache")

	cfg = config.Default()
	cfg.Bus.Type = "carrier-pigeon"
	_, err = New(cfg, logger.Discard(), Options{Bus: true})
	assert.ErrorContains(t, err, "event bus")
}

func TestCloseIsSafeOnPartialApp(t *testing.T) {
	assert.NoError(t, (&App{}).Close())
}
