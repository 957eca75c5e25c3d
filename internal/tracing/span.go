// Package tracing provides OpenTelemetry helpers for the explorer.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans created by this module.
const InstrumentationName = "github.com/persistorai/explorer"

// Attribute keys shared across spans.
const (
	AttrProduct     = attribute.Key("explorer.product")
	AttrPeriod      = attribute.Key("explorer.period")
	AttrResult      = attribute.Key("explorer.result")
	AttrChangeCount = attribute.Key("explorer.change_count")
	AttrMonthCount  = attribute.Key("explorer.month_count")
)

// Tracer returns the global tracer for this module.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// The status description stays generic so SQL text never lands in it.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
