package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// QueryMeta identifies a query execution for telemetry purposes. The
// fingerprint stands in for the query text, which is never attached to
// spans or logs directly.
type QueryMeta struct {
	DataSourceID string // upstream data source (required)
	Fingerprint  string // cache fingerprint of the query inputs (optional)
}

// SpanName returns the deterministic span name for this query.
// Format: query.exec.<dataSourceID> or query.exec when unattributed.
func (m QueryMeta) SpanName() string {
	if m.DataSourceID == "" {
		return "query.exec"
	}
	return "query.exec." + m.DataSourceID
}

// Tracer wraps OpenTelemetry tracing with query-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a query execution.
	StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with query metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("query.data_source", meta.DataSourceID),
		attribute.Bool("query.error", false), // updated in EndSpan on failure
	}
	if meta.Fingerprint != "" {
		attrs = append(attrs, attribute.String("query.fingerprint", meta.Fingerprint))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("query.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
