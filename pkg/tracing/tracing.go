package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes shared by the migration stages
const (
	AttrTable = attribute.Key("fern.table")
	AttrChunk = attribute.Key("fern.chunk")
	AttrRows  = attribute.Key("fern.rows")
)

var tracer trace.Tracer

func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a span named spanName. Without a tracer the span already in ctx, usually a
// no-op, is returned and attrs are dropped.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace id of the span in ctx, or "" when tracing is off
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if tracer == nil || !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
