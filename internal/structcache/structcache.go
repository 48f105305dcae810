// Package structcache provides backends for the outline cache used by
// ast.Engine. Every backend keys entries by language and exact source.
package structcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ricesearch/rice-syntax/internal/ast"
	"github.com/ricesearch/rice-syntax/internal/config"
	"github.com/ricesearch/rice-syntax/internal/pkg/hash"
	"github.com/ricesearch/rice-syntax/internal/pkg/logger"
)

const keyPrefix = "rice:syntax:structure"

// Store is a structure cache that owns resources.
type Store interface {
	ast.StructureCache

	// Name identifies the backend in logs and metrics.
	Name() string

	// Close releases the backend.
	Close() error
}

// New creates a store based on configuration.
func New(cfg config.StructureCacheConfig, log *logger.Logger) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(cfg.Size, cfg.TTLDuration()), nil
	case "redis":
		return NewRedis(cfg.RedisURL, cfg.TTLDuration())
	case "badger":
		return NewBadger(BadgerConfig{
			Path:   cfg.BadgerDir,
			TTL:    cfg.TTLDuration(),
			Logger: log,
		})
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown structure cache type: %s", cfg.Type)
	}
}

func storageKey(lang ast.Language, source string) string {
	return hash.StorageKey(keyPrefix, lang.String(), source)
}

func encode(node *ast.OverlayNode) ([]byte, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("encode structure: %w", err)
	}
	return data, nil
}

// decode reports ok == false for entries that do not hold a valid outline.
func decode(data []byte) (*ast.OverlayNode, bool) {
	var node ast.OverlayNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, false
	}
	if node.Validate() != nil {
		return nil, false
	}
	return &node, true
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, ast.Language, string) (*ast.OverlayNode, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, ast.Language, string, *ast.OverlayNode) error { return nil }

func (Nop) Name() string { return "none" }

func (Nop) Close() error { return nil }
