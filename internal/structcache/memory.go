package structcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ricesearch/rice-syntax/internal/ast"
)

type memoryKey struct {
	lang   ast.Language
	source string
}

// Memory is an in-process LRU of outlines. A zero ttl keeps entries until
// they are evicted by size.
type Memory struct {
	lru *expirable.LRU[memoryKey, *ast.OverlayNode]
}

// NewMemory creates a memory store holding at most size outlines.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{lru: expirable.NewLRU[memoryKey, *ast.OverlayNode](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, lang ast.Language, source string) (*ast.OverlayNode, bool, error) {
	node, ok := m.lru.Get(memoryKey{lang, source})
	return node, ok, nil
}

func (m *Memory) Set(_ context.Context, lang ast.Language, source string, node *ast.OverlayNode) error {
	if node == nil {
		return nil
	}
	m.lru.Add(memoryKey{lang, source}, node)
	return nil
}

// Len returns the number of cached outlines.
func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
