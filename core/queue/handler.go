package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Handler processes jobs of a single type. The optional result is stored
// on the job for later inspection.
type Handler interface {
	Type() JobType
	Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

type jobHandler[T any] struct {
	jobType JobType
	fn      func(ctx context.Context, payload T) (any, error)
}

// NewJobHandler wraps a typed function into a Handler. The job payload is
// unmarshaled into T before the function is called; a payload that does
// not unmarshal is a permanent failure.
func NewJobHandler[T any](jobType JobType, fn func(ctx context.Context, payload T) error) Handler {
	return &jobHandler[T]{
		jobType: jobType,
		fn: func(ctx context.Context, payload T) (any, error) {
			return nil, fn(ctx, payload)
		},
	}
}

// NewJobHandlerWithResult is NewJobHandler for functions that produce a
// result worth persisting on the job row.
func NewJobHandlerWithResult[T any](jobType JobType, fn func(ctx context.Context, payload T) (any, error)) Handler {
	return &jobHandler[T]{jobType: jobType, fn: fn}
}

func (h *jobHandler[T]) Type() JobType { return h.jobType }

func (h *jobHandler[T]) Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, errors.Join(ErrInvalidPayload, err)
		}
	}

	result, err := h.fn(ctx, p)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return raw, nil
}
