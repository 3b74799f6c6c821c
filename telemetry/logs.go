package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// Info registra un mensaje informativo
func (c *Client) Info(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	if c.logger == nil {
		return
	}

	args := appendTraceArgs(ctx, c.convertAttrsToSlogArgs(c.mergeContextAttrs(ctx, attrs)))
	c.logger.InfoContext(ctx, msg, args...)
}

// Error registra un mensaje de error
func (c *Client) Error(ctx context.Context, msg string, err error, attrs ...attribute.KeyValue) {
	if c.logger == nil {
		return
	}

	args := appendTraceArgs(ctx, c.convertAttrsToSlogArgs(c.mergeContextAttrs(ctx, attrs)))
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	c.logger.ErrorContext(ctx, msg, args...)
}

// Warn registra un mensaje de advertencia
func (c *Client) Warn(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	if c.logger == nil {
		return
	}

	args := appendTraceArgs(ctx, c.convertAttrsToSlogArgs(c.mergeContextAttrs(ctx, attrs)))
	c.logger.WarnContext(ctx, msg, args...)
}

// Debug registra un mensaje de debug
func (c *Client) Debug(ctx context.Context, msg string, attrs ...attribute.KeyValue) {
	if c.logger == nil {
		return
	}

	args := appendTraceArgs(ctx, c.convertAttrsToSlogArgs(c.mergeContextAttrs(ctx, attrs)))
	c.logger.DebugContext(ctx, msg, args...)
}

// mergeContextAttrs antepone los atributos comunes y de evento acumulados en
// el contexto a los atributos del call site.
func (c *Client) mergeContextAttrs(ctx context.Context, attrs []attribute.KeyValue) []attribute.KeyValue {
	common := GetCommonAttrs(ctx)
	event := GetEventAttrs(ctx)
	if len(common) == 0 && len(event) == 0 {
		return attrs
	}

	merged := make([]attribute.KeyValue, 0, len(common)+len(event)+len(attrs))
	merged = append(merged, common...)
	merged = append(merged, event...)
	merged = append(merged, attrs...)
	return merged
}

// convertAttrsToSlogArgs convierte atributos OTEL a argumentos slog
func (c *Client) convertAttrsToSlogArgs(attrs []attribute.KeyValue) []any {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, string(attr.Key), attr.Value.AsInterface())
	}
	return args
}

// appendTraceArgs correlaciona el log con el span activo, si existe.
func appendTraceArgs(ctx context.Context, args []any) []any {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		return args
	}
	return append(args, slog.String("trace_id", traceID), slog.String("span_id", GetSpanID(ctx)))
}
