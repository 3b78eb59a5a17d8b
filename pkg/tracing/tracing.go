// Package tracing opens spans for scans, merges and unmerges. Every span
// carries the table it works on, plus the scan, merge or record it touches,
// so a trace can be filtered down to one dedup run.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys
const (
	TableKey     = attribute.Key("clover.table")
	ScanIDKey    = attribute.Key("clover.scan_id")
	MergeIDKey   = attribute.Key("clover.merge_id")
	UnmergeIDKey = attribute.Key("clover.unmerge_id")
	RecordIDKey  = attribute.Key("clover.record_id")
	GroupsKey    = attribute.Key("clover.groups")
	CandidateKey = attribute.Key("clover.candidates")
)

var tracer trace.Tracer

// SetTracer installs the tracer spans are opened on. Until it is called
// StartSpan hands out no-op spans.
func SetTracer(t trace.Tracer) {
	tracer = t
}

func Table(name string) attribute.KeyValue { return TableKey.String(name) }
func ScanID(id string) attribute.KeyValue { return ScanIDKey.String(id) }
func MergeID(id string) attribute.KeyValue { return MergeIDKey.String(id) }
func UnmergeID(id string) attribute.KeyValue { return UnmergeIDKey.String(id) }
func RecordID(id string) attribute.KeyValue { return RecordIDKey.String(id) }
func Groups(n int) attribute.KeyValue { return GroupsKey.Int(n) }
func Candidates(n int) attribute.KeyValue { return CandidateKey.Int(n) }

// StartSpan opens a child span tagged with attrs. The returned span is never
// the caller's parent, so deferring End on it is always safe.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Annotate adds attributes learned mid-operation, like the number of groups a
// scan found, to the active span
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := activeSpan(ctx); span != nil {
		span.SetAttributes(attrs...)
	}
}

// Fail records err on span and marks it errored. A nil err is ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceParent renders the active span as a W3C traceparent header, or ""
// when there is none
func TraceParent(ctx context.Context) string {
	if activeSpan(ctx) == nil {
		return ""
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

// TraceID returns the active trace id, or "" when there is none
func TraceID(ctx context.Context) string {
	span := activeSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

func activeSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}
