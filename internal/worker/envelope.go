// Package worker exposes the engine operations behind the request/response
// envelope. Requests arrive over HTTP or the event bus, are decoded into
// typed calls and run by a bounded Dispatcher.
package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
)

// Envelope is a request on the wire: {"id": 1, "fn": "getStructure", "args": [...]}.
type Envelope struct {
	ID   uint64            `json:"id"`
	Fn   string            `json:"fn"`
	Args []json.RawMessage `json:"args"`
}

// Response is a reply on the wire. Exactly one of Res and Err is meaningful.
type Response struct {
	ID  uint64              `json:"id"`
	Res any                 `json:"res,omitempty"`
	Err *apperrors.AppError `json:"err,omitempty"`
}

// RawResponse is a Response as seen by a caller, with the result left
// undecoded.
type RawResponse struct {
	ID  uint64              `json:"id"`
	Res json.RawMessage     `json:"res,omitempty"`
	Err *apperrors.AppError `json:"err,omitempty"`
}

// Error returns the reply error, or nil on success.
func (r RawResponse) Error() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

// Decode maps an envelope to a typed request. Function names may carry a
// leading underscore.
func Decode(env Envelope) (Request, error) {
	fn := strings.TrimPrefix(env.Fn, "_")
	newCall, ok := calls[fn]
	if !ok {
		return Request{ID: env.ID}, apperrors.InvalidRequestError(fmt.Sprintf("unknown function %q", env.Fn))
	}

	call := newCall()
	targets := call.args()
	if len(env.Args) != len(targets) {
		return Request{ID: env.ID}, apperrors.InvalidRequestError(
			fmt.Sprintf("%s takes %d arguments, got %d", fn, len(targets), len(env.Args)))
	}
	for i, raw := range env.Args {
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			if appErr, ok := apperrors.As(err); ok {
				return Request{ID: env.ID}, appErr
			}
			return Request{ID: env.ID}, apperrors.Wrap(apperrors.CodeInvalidRequest,
				fmt.Sprintf("%s: malformed argument %d", fn, i), err).
				WithDetail("fn", fn)
		}
	}
	return Request{ID: env.ID, Call: call}, nil
}

// Encode builds the envelope for call.
func Encode(id uint64, call Call) (Envelope, error) {
	targets := call.args()
	env := Envelope{ID: id, Fn: call.Fn(), Args: make([]json.RawMessage, len(targets))}
	for i, target := range targets {
		raw, err := json.Marshal(target)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s argument %d: %w", call.Fn(), i, err)
		}
		env.Args[i] = raw
	}
	return env, nil
}

// NewEnvelope builds an envelope from loose arguments.
func NewEnvelope(id uint64, fn string, args ...any) (Envelope, error) {
	env := Envelope{ID: id, Fn: fn, Args: make([]json.RawMessage, len(args))}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s argument %d: %w", fn, i, err)
		}
		env.Args[i] = raw
	}
	return env, nil
}
