package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestContextKey struct{}

// RequestMeta identifies one client request across logs and audit entries.
type RequestMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
	// Tool is the MCP tool the request arrived through.
	Tool string
}

func (m RequestMeta) IsZero() bool {
	return m.RequestID == "" && m.TraceID == "" && m.SpanID == "" && m.Tool == ""
}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	if meta.IsZero() {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, meta)
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestContextKey{}).(RequestMeta)
	return meta, ok && !meta.IsZero()
}

func NewRequestID() string {
	return uuid.NewString()
}

func TraceSpanFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return "", ""
	}
	return spanCtx.TraceID().String(), spanCtx.SpanID().String()
}

// EnsureRequestMeta attaches request metadata for tool, reusing an existing
// request id and picking up the active span.
func EnsureRequestMeta(ctx context.Context, tool string) (context.Context, RequestMeta) {
	if ctx == nil {
		ctx = context.Background()
	}
	meta, _ := RequestMetaFromContext(ctx)
	if meta.RequestID == "" {
		meta.RequestID = NewRequestID()
	}
	if tool != "" {
		meta.Tool = tool
	}
	meta.TraceID, meta.SpanID = TraceSpanFromContext(ctx)
	return context.WithValue(ctx, requestContextKey{}, meta), meta
}

// AuditIDs returns the request and trace ids recorded on audit entries.
func AuditIDs(ctx context.Context) (requestID string, traceID string) {
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return "", ""
	}
	return meta.RequestID, meta.TraceID
}

func RequestFields(meta RequestMeta) []zap.Field {
	if meta.IsZero() {
		return nil
	}
	fields := make([]zap.Field, 0, 4)
	if meta.RequestID != "" {
		fields = append(fields, RequestIDField(meta.RequestID))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	if meta.Tool != "" {
		fields = append(fields, ToolField(meta.Tool))
	}
	return fields
}

func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return logger
	}
	return logger.With(RequestFields(meta)...)
}
