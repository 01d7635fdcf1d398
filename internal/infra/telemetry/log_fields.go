package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldTool       = "tool"
	FieldLayers     = "layers"
	FieldProfile    = "profile"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventActivate     = "activate"
	EventDeactivate   = "deactivate"
	EventToolCall     = "tool_call"
	EventToolSync     = "tool_sync"
	EventConfigReload = "config_reload"
)

const (
	LogSourceCore    = "core"
	LogSourceGateway = "gateway"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func LayersField(layers []string) zap.Field {
	return zap.Strings(FieldLayers, layers)
}

func ProfileField(profile string) zap.Field {
	return zap.String(FieldProfile, profile)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
