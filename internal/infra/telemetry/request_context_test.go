package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureRequestMetaGeneratesID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background(), "activate")
	require.NotEmpty(t, meta.RequestID)
	require.Equal(t, "activate", meta.Tool)

	got, ok := RequestMetaFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, meta, got)
}

func TestEnsureRequestMetaKeepsExistingID(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), RequestMeta{RequestID: "req-123"})
	ctx, meta := EnsureRequestMeta(ctx, "search")
	require.Equal(t, "req-123", meta.RequestID)

	requestID, traceID := AuditIDs(ctx)
	require.Equal(t, "req-123", requestID)
	require.Empty(t, traceID)
}

func TestTraceSpanFromContext(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	gotTraceID, gotSpanID := TraceSpanFromContext(ctx)
	require.Equal(t, traceID.String(), gotTraceID)
	require.Equal(t, spanID.String(), gotSpanID)

	_, meta := EnsureRequestMeta(ctx, "discover")
	require.Equal(t, traceID.String(), meta.TraceID)
}

func TestLoggerWithRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithRequestMeta(context.Background(), RequestMeta{RequestID: "req-9", Tool: "activate"})

	LoggerWithRequest(ctx, zap.New(core)).Info("handled")
	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-9", fields[FieldRequestID])
	require.Equal(t, "activate", fields[FieldTool])

	require.NotNil(t, LoggerWithRequest(context.Background(), nil))
}
