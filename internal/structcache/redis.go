package structcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/rice-syntax/internal/ast"
)

// Redis stores outlines as JSON strings shared between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to url and verifies the connection.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisFromClient(client, ttl), nil
}

// NewRedisFromClient wraps an existing client. The store takes ownership
// and closes it on Close.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, lang ast.Language, source string) (*ast.OverlayNode, bool, error) {
	data, err := r.client.Get(ctx, storageKey(lang, source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading structure: %w", err)
	}
	node, ok := decode(data)
	return node, ok, nil
}

func (r *Redis) Set(ctx context.Context, lang ast.Language, source string, node *ast.OverlayNode) error {
	if node == nil {
		return nil
	}
	data, err := encode(node)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, storageKey(lang, source), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving structure: %w", err)
	}
	return nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Close() error { return r.client.Close() }
