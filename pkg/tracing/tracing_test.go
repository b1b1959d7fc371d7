package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

func TestStartSpan_WithoutTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, GetTraceID(ctx))
}

func TestStartSpan_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	SetTracer(provider.Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })

	ctx, span := StartSpan(context.Background(), "Pipeline.processChunk", AttrTable.String("genre"), AttrChunk.Int(3))
	assert.NotEmpty(t, GetTraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Pipeline.processChunk", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), AttrTable.String("genre"))
	assert.Contains(t, ended[0].Attributes(), AttrChunk.Int(3))
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "fern", exporters.OTLPConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewOTLPExporter_UnknownProtocol(t *testing.T) {
	_, err := exporters.NewOTLPExporter(context.Background(), exporters.OTLPConfig{Endpoint: "localhost:4317", Protocol: "udp"})
	assert.Error(t, err)
}
