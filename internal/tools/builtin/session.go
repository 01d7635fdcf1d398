package builtin

import (
	"context"
	"encoding/json"
	"fmt"
)

// StatusFunc reports the registry state for session_status.
type StatusFunc func(ctx context.Context) (any, error)

// SessionBackend answers session_status locally and forwards every other
// tool to Next.
type SessionBackend struct {
	Status StatusFunc
	Next   Backend
}

func (b SessionBackend) Invoke(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	if tool == ToolSessionStatus && b.Status != nil {
		status, err := b.Status(ctx)
		if err != nil {
			return "", fmt.Errorf("session status: %w", err)
		}
		raw, err := json.Marshal(status)
		if err != nil {
			return "", fmt.Errorf("encode session status: %w", err)
		}
		return string(raw), nil
	}
	next := b.Next
	if next == nil {
		next = UnconfiguredBackend{}
	}
	return next.Invoke(ctx, tool, args)
}
