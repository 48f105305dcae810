package worker

import (
	"context"
	"encoding/json"
	"sync/atomic"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// Sender delivers one envelope and returns its raw result. A failed
// request comes back as an *apperrors.AppError.
type Sender interface {
	Send(ctx context.Context, env Envelope) (json.RawMessage, error)
}

// Caller numbers requests and adds loose and typed calls on top of a Sender.
type Caller struct {
	sender Sender
	nextID atomic.Uint64
}

// NewCaller wraps s.
func NewCaller(s Sender) *Caller {
	return &Caller{sender: s}
}

// Call invokes fn with positional args and returns the raw result.
func (c *Caller) Call(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	env, err := NewEnvelope(c.nextID.Add(1), fn, args...)
	if err != nil {
		return nil, err
	}
	return c.sender.Send(ctx, env)
}

// Do sends a typed call and decodes its result into out. A nil out
// discards the result.
func (c *Caller) Do(ctx context.Context, call Call, out any) error {
	env, err := Encode(c.nextID.Add(1), call)
	if err != nil {
		return err
	}
	raw, err := c.sender.Send(ctx, env)
	if err != nil {
		return err
	}
	return DecodeResult(raw, out)
}

// Send runs env in process. It lets the dispatcher stand in for a remote
// client.
func (d *Dispatcher) Send(ctx context.Context, env Envelope) (json.RawMessage, error) {
	resp := d.HandleEnvelope(ctx, env)
	if resp.Err != nil {
		return nil, resp.Err
	}
	raw, err := json.Marshal(resp.Res)
	if err != nil {
		return nil, apperrors.InternalError("encoding result", err)
	}
	return raw, nil
}

// DecodeResult decodes a raw result into out. Missing and null results
// leave out untouched.
func DecodeResult(raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.InternalError("malformed result", err)
	}
	return nil
}
