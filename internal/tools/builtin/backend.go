package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"capgate/internal/domain"
)

// ErrNotConfigured marks calls to a collaborator that was never wired.
var ErrNotConfigured = errors.New("backend not configured")

// Backend performs the work behind the built-in tools. The registry never
// looks inside it.
type Backend interface {
	Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, tool string, args json.RawMessage) (string, error)

func (f BackendFunc) Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	return f(ctx, tool, args)
}

// UnconfiguredBackend fails every call with ErrNotConfigured.
type UnconfiguredBackend struct{}

func (UnconfiguredBackend) Invoke(_ context.Context, tool string, _ json.RawMessage) (string, error) {
	return "", domain.E(domain.CodeFailedPrecond, "invoke", fmt.Sprintf("%s: %v", tool, ErrNotConfigured), ErrNotConfigured)
}

func bind(backend Backend, tool string) domain.ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return backend.Invoke(ctx, tool, args)
	}
}
